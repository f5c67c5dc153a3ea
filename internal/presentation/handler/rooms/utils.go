package rooms

import (
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

// roomExpiry estimates the window end from the oldest file, which is when the
// room was filled.
func roomExpiry(files []domain.FileEntry) time.Time {
	var oldest time.Time
	for _, f := range files {
		if oldest.IsZero() || f.UploadedAt.Before(oldest) {
			oldest = f.UploadedAt
		}
	}
	return oldest.Add(domain.RoomTTL)
}
