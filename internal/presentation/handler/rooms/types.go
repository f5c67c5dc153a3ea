package rooms

import (
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

type roomCodeResponse struct {
	Code string `json:"code"`
}

type presignRequest struct {
	Filename string `json:"filename"`
}

type presignResponse struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	MaxSizeBytes int64  `json:"maxSizeBytes"`
}

type fileResponse struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type listRoomResponse struct {
	Files []fileResponse `json:"files"`
}

func toListRoomResponse(files []domain.FileEntry) listRoomResponse {
	resp := listRoomResponse{Files: make([]fileResponse, 0, len(files))}
	for _, f := range files {
		resp.Files = append(resp.Files, fileResponse{
			Name:        f.Name,
			URL:         f.URL,
			DownloadURL: f.DownloadURL,
			Size:        f.Size,
			UploadedAt:  f.UploadedAt,
		})
	}
	return resp
}
