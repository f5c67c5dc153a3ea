package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

type Option func(*options)

type options struct {
	now     domain.Clock
	onEvict func(domain.RoomCode)
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now domain.Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEvictionHook is called, outside the lock, for every room dropped by a sweep.
func WithEvictionHook(fn func(domain.RoomCode)) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

type memoryRoomRegistry struct {
	rooms    map[domain.RoomCode]*domain.Room // code -> committed room
	reserved map[domain.RoomCode]time.Time    // code -> reservation time
	opts     options
	mu       sync.Mutex
}

func NewMemoryRoomRegistry(opts ...Option) domain.RoomRegistry {
	return &memoryRoomRegistry{
		rooms:    make(map[domain.RoomCode]*domain.Room),
		reserved: make(map[domain.RoomCode]time.Time),
		opts:     newOptions(opts),
	}
}

// sweepLocked drops expired rooms and stale reservations. Callers hold r.mu.
func (r *memoryRoomRegistry) sweepLocked(now time.Time) []domain.RoomCode {
	var evicted []domain.RoomCode
	for code, room := range r.rooms {
		if room.ExpiresAt.Before(now) {
			delete(r.rooms, code)
			evicted = append(evicted, code)
		}
	}

	// A reservation whose batch never finished is as dead as an expired room.
	for code, at := range r.reserved {
		if now.Sub(at) > domain.RoomTTL {
			delete(r.reserved, code)
		}
	}

	return evicted
}

func (r *memoryRoomRegistry) notify(evicted []domain.RoomCode) {
	if r.opts.onEvict == nil {
		return
	}
	for _, code := range evicted {
		r.opts.onEvict(code)
	}
}

func (r *memoryRoomRegistry) Reserve(ctx context.Context, code domain.RoomCode) error {
	if code == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	evicted := r.sweepLocked(r.opts.now())

	_, committed := r.rooms[code]
	_, pending := r.reserved[code]
	if committed || pending {
		r.mu.Unlock()
		r.notify(evicted)
		return domain.ErrRoomAlreadyExists
	}

	r.reserved[code] = r.opts.now()
	r.mu.Unlock()

	r.notify(evicted)
	return nil
}

func (r *memoryRoomRegistry) Release(ctx context.Context, code domain.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reserved, code)
	return nil
}

// Commit turns a reservation into a room. Rooms are never overwritten.
func (r *memoryRoomRegistry) Commit(ctx context.Context, room *domain.Room) error {
	if room == nil || room.Code == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	evicted := r.sweepLocked(r.opts.now())

	var err error
	if _, exists := r.rooms[room.Code]; exists {
		err = domain.ErrRoomAlreadyExists
	} else if _, ok := r.reserved[room.Code]; !ok {
		err = domain.ErrRoomNotFound
	} else {
		delete(r.reserved, room.Code)
		r.rooms[room.Code] = room
	}
	r.mu.Unlock()

	r.notify(evicted)
	return err
}

// Get sweeps before looking up, so an expired room is deleted rather than returned.
func (r *memoryRoomRegistry) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	evicted := r.sweepLocked(r.opts.now())
	room, exists := r.rooms[code]
	r.mu.Unlock()

	r.notify(evicted)

	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	// Return a copy to prevent external mutation
	cpy := *room
	cpy.Files = make([]domain.FileEntry, len(room.Files))
	copy(cpy.Files, room.Files)

	return &cpy, nil
}

// Delete removes a room (idempotent).
func (r *memoryRoomRegistry) Delete(ctx context.Context, code domain.RoomCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, code)
	delete(r.reserved, code)
	return nil
}

func (r *memoryRoomRegistry) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	evicted := r.sweepLocked(r.opts.now())
	r.mu.Unlock()

	r.notify(evicted)
	return len(evicted), nil
}
