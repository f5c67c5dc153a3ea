package domain

import (
	"errors"
	"sort"
	"time"
)

const (
	// RoomTTL is how long a room stays retrievable after it is created.
	RoomTTL = 10 * time.Minute

	// MaxFileSize is the per-file ceiling enforced by the content stores.
	MaxFileSize int64 = 50 * 1024 * 1024 * 1024
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomAlreadyExists  = errors.New("room already exists")
	ErrInvalidRoomCode    = errors.New("invalid room code")
	ErrEmptyBatch         = errors.New("no files to upload")
	ErrInvalidInput       = errors.New("invalid input")
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
	ErrUploadFailed       = errors.New("upload failed")
	ErrPresignUnsupported = errors.New("content store does not support presigned uploads")
)

type FileEntry struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Room struct {
	Code      RoomCode    `json:"code"`
	Files     []FileEntry `json:"files"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// NewRoom builds a room whose window starts at now. Files are ordered newest first.
func NewRoom(code RoomCode, files []FileEntry, now time.Time) (*Room, error) {
	if code == "" {
		return nil, ErrInvalidInput
	}

	sorted := make([]FileEntry, len(files))
	copy(sorted, files)
	SortNewestFirst(sorted)

	return &Room{
		Code:      code,
		Files:     sorted,
		CreatedAt: now,
		ExpiresAt: now.Add(RoomTTL),
	}, nil
}

// Expired reports whether the room's window has closed at the given instant.
func (r *Room) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// FileExpired applies the same window to a single upload timestamp.
func FileExpired(uploadedAt, now time.Time) bool {
	return now.Sub(uploadedAt) > RoomTTL
}

// SortNewestFirst orders by upload time. Stores that report whole seconds make
// files of one batch tie, so ties fall back to the millisecond epoch in the key.
func SortNewestFirst(files []FileEntry) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i].UploadedAt, files[j].UploadedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return keyEpoch(files[i].Key) > keyEpoch(files[j].Key)
	})
}
