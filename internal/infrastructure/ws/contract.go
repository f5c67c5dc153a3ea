package ws

import (
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

type WSMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Data     any    `json:"data,omitempty"`
}

type FilePayload struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type RoomReadyPayload struct {
	Files     []FilePayload `json:"files"`
	ExpiresAt string        `json:"expiresAt"`
}

func NewWatching(code domain.RoomCode) *WSMessage {
	return &WSMessage{Type: RoomWatchingEvent, RoomCode: code.String()}
}

func NewRoomReady(code domain.RoomCode, files []domain.FileEntry, expiresAt time.Time) *WSMessage {
	payload := RoomReadyPayload{
		Files:     make([]FilePayload, 0, len(files)),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}
	for _, f := range files {
		payload.Files = append(payload.Files, FilePayload{
			Name:        f.Name,
			URL:         f.URL,
			DownloadURL: f.DownloadURL,
		})
	}
	return &WSMessage{Type: RoomReadyEvent, RoomCode: code.String(), Data: payload}
}

func NewRoomExpired(code domain.RoomCode) *WSMessage {
	return &WSMessage{Type: RoomExpiredEvent, RoomCode: code.String()}
}
