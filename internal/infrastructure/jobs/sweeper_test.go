package jobs

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/repository"
)

func TestRoomSweepJobRunOnce(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var evicted []domain.RoomCode
	registry := repository.NewMemoryRoomRegistry(
		repository.WithClock(clock),
		repository.WithEvictionHook(func(code domain.RoomCode) { evicted = append(evicted, code) }),
	)

	ctx := context.Background()
	for _, code := range []domain.RoomCode{"ABC234", "XYZ789"} {
		if err := registry.Reserve(ctx, code); err != nil {
			t.Fatalf("reserve %s: %v", code, err)
		}
		room, err := domain.NewRoom(code, []domain.FileEntry{{Name: "a.txt", UploadedAt: now}}, now)
		if err != nil {
			t.Fatalf("new room: %v", err)
		}
		if err := registry.Commit(ctx, room); err != nil {
			t.Fatalf("commit %s: %v", code, err)
		}
	}

	job := NewRoomSweepJob(registry, nil, "", nil, nil, time.Second)

	if n := job.RunOnce(ctx); n != 0 {
		t.Fatalf("expected nothing swept before expiry, got %d", n)
	}

	now = now.Add(domain.RoomTTL + time.Second)
	if n := job.RunOnce(ctx); n != 2 {
		t.Fatalf("expected 2 rooms swept, got %d", n)
	}
	if len(evicted) != 2 {
		t.Errorf("expected eviction hook for both rooms, got %v", evicted)
	}
}

func TestRoomSweepJobStopsOnCancel(t *testing.T) {
	job := NewRoomSweepJob(repository.NewMemoryRoomRegistry(), nil, "", nil, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep job did not stop after context cancellation")
	}

	// Stop after the loop has exited must not panic.
	job.Stop()
	job.Stop()
}

type blobStore struct {
	mu      sync.Mutex
	objects map[string]time.Time // key -> last modified
}

func newBlobStore() *blobStore {
	return &blobStore{objects: make(map[string]time.Time)}
}

func (s *blobStore) add(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = at
}

func (s *blobStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *blobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.StoredObject, error) {
	s.add(key, time.Now())
	return domain.StoredObject{Key: key}, nil
}

func (s *blobStore) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StoredObject
	for k, at := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, domain.StoredObject{Key: k, LastModified: at})
		}
	}
	return out, nil
}

func (s *blobStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *blobStore) PresignPut(ctx context.Context, key string) (string, error) {
	return "", domain.ErrPresignUnsupported
}

func TestRoomSweepJobRemovesExpiredBlobs(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	clock := func() time.Time { return now }

	registry := repository.NewMemoryRoomRegistry(repository.WithClock(clock))
	store := newBlobStore()
	ctx := context.Background()

	commit := func(code domain.RoomCode, names ...string) []string {
		t.Helper()
		if err := registry.Reserve(ctx, code); err != nil {
			t.Fatalf("reserve %s: %v", code, err)
		}
		var (
			keys    []string
			entries []domain.FileEntry
		)
		for _, name := range names {
			key := domain.EncodeObjectKey(domain.DefaultRoomPrefix, code, now, name)
			store.add(key, now)
			keys = append(keys, key)
			entries = append(entries, domain.FileEntry{Name: name, Key: key, UploadedAt: now})
		}
		room, err := domain.NewRoom(code, entries, now)
		if err != nil {
			t.Fatalf("new room: %v", err)
		}
		if err := registry.Commit(ctx, room); err != nil {
			t.Fatalf("commit %s: %v", code, err)
		}
		return keys
	}

	commit("ABC234", "a.txt", "b.txt")
	// A batch that failed midway leaves an object behind with no room.
	store.add(domain.EncodeObjectKey(domain.DefaultRoomPrefix, "DEF456", now, "partial.bin"), now)

	now = now.Add(5 * time.Minute)
	liveKeys := commit("XYZ789", "c.txt")

	job := NewRoomSweepJob(registry, store, "", nil, nil, time.Second)
	job.now = clock

	job.RunOnce(ctx)
	if got := len(store.keys()); got != 4 {
		t.Fatalf("expected nothing removed before expiry, store has %d objects", got)
	}

	now = start.Add(domain.RoomTTL + time.Second)
	if n := job.RunOnce(ctx); n != 1 {
		t.Fatalf("expected 1 room swept, got %d", n)
	}
	got := store.keys()
	if len(got) != 1 || got[0] != liveKeys[0] {
		t.Fatalf("expected only the live room's object to remain, got %v", got)
	}

	now = now.Add(5 * time.Minute)
	job.RunOnce(ctx)
	if got := store.keys(); len(got) != 0 {
		t.Fatalf("expected an empty store after every room expired, got %v", got)
	}
	if _, err := registry.Get(ctx, "XYZ789"); err != domain.ErrRoomNotFound {
		t.Errorf("expected XYZ789 evicted, got %v", err)
	}
}
