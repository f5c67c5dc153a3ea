package files

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func writeObject(t *testing.T, base, key, content string) {
	t.Helper()
	p := filepath.Join(base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// commitRoom registers keys as one room created at the clock's current time.
func commitRoom(t *testing.T, registry domain.RoomRegistry, clock *testClock, code domain.RoomCode, keys ...string) {
	t.Helper()
	ctx := context.Background()
	if err := registry.Reserve(ctx, code); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	entries := make([]domain.FileEntry, len(keys))
	for i, k := range keys {
		decoded, _ := domain.DecodeObjectKey(domain.DefaultRoomPrefix, k)
		entries[i] = domain.FileEntry{Name: decoded.Name, Key: k, UploadedAt: decoded.UploadedAt}
	}
	room, err := domain.NewRoom(code, entries, clock.Now())
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	if err := registry.Commit(ctx, room); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func get(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeFile(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServeFile(t *testing.T) {
	base := t.TempDir()
	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	registry := repository.NewMemoryRoomRegistry(repository.WithClock(clock.Now))

	listed := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "ABC234", clock.Now().Add(-time.Minute), "report final.pdf")
	orphan := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "ABC234", clock.Now(), "failed-batch.bin")
	stranger := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "XYZ789", clock.Now(), "other.txt")
	writeObject(t, base, listed, "live")
	writeObject(t, base, orphan, "orphan")
	writeObject(t, base, stranger, "no room")
	writeObject(t, base, "transfer/rooms/ABC234/.tmp-123", "partial")
	commitRoom(t, registry, clock, "ABC234", listed)

	h := NewHandler(base, "", registry, nil)

	escaped := "/files/" + strings.ReplaceAll(listed, " ", "%20")
	tests := []struct {
		name        string
		target      string
		wantStatus  int
		wantBody    string
		disposition string
	}{
		{"inline", escaped, http.StatusOK, "live", ""},
		{"download", escaped + "?download=1", http.StatusOK, "live", `attachment; filename="report final.pdf"`},
		{"not listed in its room", "/files/" + orphan, http.StatusNotFound, "", ""},
		{"unknown room", "/files/" + stranger, http.StatusNotFound, "", ""},
		{"partial upload", "/files/transfer/rooms/ABC234/.tmp-123", http.StatusNotFound, "", ""},
		{"directory", "/files/transfer/rooms/ABC234", http.StatusNotFound, "", ""},
		{"outside the room namespace", "/files/elsewhere/a.txt", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(h, tt.target)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("Content-Disposition"); got != tt.disposition {
				t.Errorf("Content-Disposition = %q, want %q", got, tt.disposition)
			}
		})
	}
}

// A slow batch commits minutes after its keys were stamped; the links must
// stay valid for the whole room window, not the key's.
func TestServeFileFollowsRoomWindow(t *testing.T) {
	base := t.TempDir()
	batchStart := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &testClock{now: batchStart}
	registry := repository.NewMemoryRoomRegistry(repository.WithClock(clock.Now))

	key := domain.EncodeObjectKey(domain.DefaultRoomPrefix, "ABC234", batchStart, "slow.bin")
	writeObject(t, base, key, "payload")

	clock.Advance(3 * time.Minute)
	commitRoom(t, registry, clock, "ABC234", key)

	h := NewHandler(base, "", registry, nil)

	clock.Advance(8 * time.Minute) // 11 minutes after the key epoch
	if rec := get(h, "/files/"+key); rec.Code != http.StatusOK {
		t.Fatalf("status = %d while the room is still live", rec.Code)
	}

	clock.Advance(2*time.Minute + time.Second) // past the room's own expiry
	if rec := get(h, "/files/"+key); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d after the room expired", rec.Code)
	}
}
