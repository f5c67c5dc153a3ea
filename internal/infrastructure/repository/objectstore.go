package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

// objectStoreRoomRegistry has no records of its own: a room is whatever live
// objects sit under its key prefix. Reservations are only visible to this process.
type objectStoreRoomRegistry struct {
	store      domain.ContentStore
	roomPrefix string
	reserved   map[domain.RoomCode]time.Time
	opts       options
	mu         sync.Mutex
}

func NewObjectStoreRoomRegistry(store domain.ContentStore, roomPrefix string, opts ...Option) domain.RoomRegistry {
	if roomPrefix == "" {
		roomPrefix = domain.DefaultRoomPrefix
	}
	return &objectStoreRoomRegistry{
		store:      store,
		roomPrefix: roomPrefix,
		reserved:   make(map[domain.RoomCode]time.Time),
		opts:       newOptions(opts),
	}
}

// Reserve holds the mutex across the listing so that two local uploads can't
// both see an empty prefix for the same code.
func (r *objectStoreRoomRegistry) Reserve(ctx context.Context, code domain.RoomCode) error {
	if code == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.now()
	for c, at := range r.reserved {
		if now.Sub(at) > domain.RoomTTL {
			delete(r.reserved, c)
		}
	}

	if _, pending := r.reserved[code]; pending {
		return domain.ErrRoomAlreadyExists
	}

	files, err := r.liveFiles(ctx, code, now)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		return domain.ErrRoomAlreadyExists
	}

	r.reserved[code] = now
	return nil
}

func (r *objectStoreRoomRegistry) Release(ctx context.Context, code domain.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reserved, code)
	return nil
}

// Commit has nothing to write; storing the objects already registered the room.
func (r *objectStoreRoomRegistry) Commit(ctx context.Context, room *domain.Room) error {
	if room == nil || room.Code == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reserved, room.Code)
	return nil
}

func (r *objectStoreRoomRegistry) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	files, err := r.liveFiles(ctx, code, r.opts.now())
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, domain.ErrRoomNotFound
	}

	domain.SortNewestFirst(files)

	// The oldest upload opens the window.
	createdAt := files[len(files)-1].UploadedAt
	return &domain.Room{
		Code:      code,
		Files:     files,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(domain.RoomTTL),
	}, nil
}

// Delete is best effort: whatever survives ages out of the window anyway.
func (r *objectStoreRoomRegistry) Delete(ctx context.Context, code domain.RoomCode) error {
	objects, err := r.store.List(ctx, domain.RoomPrefix(r.roomPrefix, code))
	if err != nil {
		return fmt.Errorf("list room %s: %w", code, err)
	}

	for _, obj := range objects {
		if err := r.store.Remove(ctx, obj.Key); err != nil {
			return fmt.Errorf("remove %s: %w", obj.Key, err)
		}
	}

	r.mu.Lock()
	delete(r.reserved, code)
	r.mu.Unlock()

	return nil
}

// Sweep deletes objects that fell out of the window across the whole namespace.
// A room counts as evicted, and is reported to the eviction hook, only once no
// live object remains under its prefix; a later presigned upload keeps it open.
func (r *objectStoreRoomRegistry) Sweep(ctx context.Context) (int, error) {
	now := r.opts.now()

	touched, _, err := SweepExpiredObjects(ctx, r.store, r.roomPrefix, now, nil)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, code := range touched {
		files, err := r.liveFiles(ctx, code, now)
		if err != nil {
			return evicted, err
		}
		if len(files) > 0 {
			continue
		}
		evicted++
		if r.opts.onEvict != nil {
			r.opts.onEvict(code)
		}
	}

	return evicted, nil
}

// SweepExpiredObjects removes every object under roomPrefix whose upload time is
// past the room window. Objects of rooms for which keep reports true are left
// alone. It returns the codes that lost objects and how many objects went.
func SweepExpiredObjects(
	ctx context.Context,
	store domain.ContentStore,
	roomPrefix string,
	now time.Time,
	keep func(domain.RoomCode) bool,
) ([]domain.RoomCode, int, error) {
	objects, err := store.List(ctx, roomPrefix)
	if err != nil {
		return nil, 0, fmt.Errorf("list room namespace: %w", err)
	}

	var (
		codes   []domain.RoomCode
		seen    = make(map[domain.RoomCode]bool)
		kept    = make(map[domain.RoomCode]bool)
		removed int
	)
	for _, obj := range objects {
		decoded, ok := domain.DecodeObjectKey(roomPrefix, obj.Key)
		if !ok {
			continue
		}
		if !domain.FileExpired(uploadedAt(obj, decoded), now) {
			continue
		}

		if keep != nil {
			k, checked := kept[decoded.Code]
			if !checked {
				k = keep(decoded.Code)
				kept[decoded.Code] = k
			}
			if k {
				continue
			}
		}

		if err := store.Remove(ctx, obj.Key); err != nil {
			return codes, removed, fmt.Errorf("remove %s: %w", obj.Key, err)
		}
		removed++
		if !seen[decoded.Code] {
			seen[decoded.Code] = true
			codes = append(codes, decoded.Code)
		}
	}

	return codes, removed, nil
}

func (r *objectStoreRoomRegistry) liveFiles(ctx context.Context, code domain.RoomCode, now time.Time) ([]domain.FileEntry, error) {
	objects, err := r.store.List(ctx, domain.RoomPrefix(r.roomPrefix, code))
	if err != nil {
		return nil, fmt.Errorf("list room %s: %w", code, err)
	}

	files := make([]domain.FileEntry, 0, len(objects))
	for _, obj := range objects {
		decoded, ok := domain.DecodeObjectKey(r.roomPrefix, obj.Key)
		if !ok || decoded.Code != code {
			continue
		}

		at := uploadedAt(obj, decoded)
		if at.IsZero() || domain.FileExpired(at, now) {
			continue
		}

		files = append(files, domain.FileEntry{
			Name:        decoded.Name,
			URL:         obj.URL,
			DownloadURL: obj.DownloadURL,
			Key:         obj.Key,
			Size:        obj.Size,
			UploadedAt:  at,
		})
	}

	return files, nil
}

// uploadedAt prefers the store's own timestamp and falls back to the key's epoch.
func uploadedAt(obj domain.StoredObject, decoded domain.DecodedKey) time.Time {
	if !obj.LastModified.IsZero() {
		return obj.LastModified
	}
	return decoded.UploadedAt
}
