package domain

import (
	"context"
	"io"
	"time"
)

// RoomRegistry maps room codes to their files for the length of RoomTTL.
//
// Reserve is the compare-and-insert step of code allocation: it must fail with
// ErrRoomAlreadyExists when the code is already held, so two uploads can never
// commit the same code. Get reports ErrRoomNotFound for unknown and expired rooms alike.
type RoomRegistry interface {
	Reserve(ctx context.Context, code RoomCode) error
	Release(ctx context.Context, code RoomCode) error
	Commit(ctx context.Context, room *Room) error
	Get(ctx context.Context, code RoomCode) (*Room, error)
	Delete(ctx context.Context, code RoomCode) error
	Sweep(ctx context.Context) (int, error)
}

type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
	URL          string
	DownloadURL  string
}

// ContentStore persists file blobs under flat keys.
type ContentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error)
	List(ctx context.Context, prefix string) ([]StoredObject, error)
	Remove(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key string) (string, error)
}

type Upload struct {
	Name        string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// RoomNotifier receives room lifecycle transitions.
type RoomNotifier interface {
	RoomCreated(ctx context.Context, room Room)
	RoomExpired(ctx context.Context, code RoomCode)
}

type Clock func() time.Time
