package events

import "time"

// Routing keys
const (
	EventRoomCreated = "room.created"
	EventRoomExpired = "room.expired"
)

type RoomEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RoomCode   string    `json:"roomCode"`
	FileCount  int       `json:"fileCount,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitzero"`
	OccurredAt time.Time `json:"occurredAt"`
}
