package rooms

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/roomdrop/internal/application/transfer"
	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/json"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/ws"
)

const (
	filesField       = "files"
	defaultMaxMemory = 32 << 20
)

type Handler struct {
	transfer  transfer.TransferUseCase
	hub       *ws.Hub
	logger    logging.Logger
	maxMemory int64
}

// NewHandler wires the room endpoints. maxMemory bounds how much of a
// multipart body is held in memory before parts spill to temp files.
func NewHandler(transfer transfer.TransferUseCase, hub *ws.Hub, logger logging.Logger, maxMemory int64) *Handler {
	if maxMemory <= 0 {
		maxMemory = defaultMaxMemory
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{
		transfer:  transfer,
		hub:       hub,
		logger:    logger,
		maxMemory: maxMemory,
	}
}

func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	code, err := h.transfer.CreateRoom(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, roomCodeResponse{Code: code.String()})
}

func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	uploads, cleanup, err := h.readUploads(r)
	defer cleanup()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	code, err := h.transfer.Upload(r.Context(), uploads)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, roomCodeResponse{Code: code.String()})
}

func (h *Handler) UploadToRoomHandler(w http.ResponseWriter, r *http.Request) {
	rawCode := chi.URLParam(r, "code")
	if _, err := domain.ParseRoomCode(rawCode); err != nil {
		h.writeError(w, r, err)
		return
	}

	uploads, cleanup, err := h.readUploads(r)
	defer cleanup()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	code, err := h.transfer.UploadToRoom(r.Context(), rawCode, uploads)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, roomCodeResponse{Code: code.String()})
}

func (h *Handler) PresignHandler(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := json.Read(w, r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	presigned, err := h.transfer.PresignUpload(r.Context(), chi.URLParam(r, "code"), req.Filename)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, presignResponse{
		Key:          presigned.Key,
		URL:          presigned.URL,
		MaxSizeBytes: presigned.MaxSizeBytes,
	})
}

// DownloadHandler serves GET /api/download?code=.
func (h *Handler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	h.listRoom(w, r, r.URL.Query().Get("code"))
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	h.listRoom(w, r, chi.URLParam(r, "code"))
}

func (h *Handler) listRoom(w http.ResponseWriter, r *http.Request, rawCode string) {
	files, err := h.transfer.ListRoom(r.Context(), rawCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, toListRoomResponse(files))
}

// WatchRoomHandler upgrades to a websocket that reports when the room gets
// its files and when it expires.
func (h *Handler) WatchRoomHandler(w http.ResponseWriter, r *http.Request) {
	code, err := domain.ParseRoomCode(chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.hub.Upgrade(w, r)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.logger.Warn(logging.RequestResponse, logging.Subscribe, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomCode:     code.String(),
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := h.hub.NewClient(conn, code)
	h.hub.Subscribe(client)
	h.hub.Deliver(client, ws.NewWatching(code))

	// Subscribing first means a commit racing this lookup is seen at least once.
	if files, err := h.transfer.ListRoom(r.Context(), code.String()); err == nil {
		h.hub.Deliver(client, ws.NewRoomReady(code, files, roomExpiry(files)))
	}

	go client.WriteMessage()
	client.ReadMessage(h.hub)
}

func (h *Handler) readUploads(r *http.Request) ([]domain.Upload, func(), error) {
	noop := func() {}

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		return nil, noop, fmt.Errorf("%w: malformed multipart body: %w", domain.ErrInvalidInput, err)
	}

	cleanup := func() {
		_ = r.MultipartForm.RemoveAll()
	}

	headers := r.MultipartForm.File[filesField]
	if len(headers) == 0 {
		return nil, cleanup, domain.ErrEmptyBatch
	}

	uploads := make([]domain.Upload, 0, len(headers))
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
		cleanup()
	}

	for _, fh := range headers {
		if fh.Size > domain.MaxFileSize {
			closeAll()
			return nil, noop, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, fh.Filename)
		}

		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, fmt.Errorf("open part %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)

		uploads = append(uploads, domain.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	return uploads, closeAll, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRoomCode):
		json.WriteError(w, http.StatusBadRequest, "Invalid room code")
	case errors.Is(err, domain.ErrEmptyBatch):
		json.WriteError(w, http.StatusBadRequest, "No files")
	case errors.Is(err, domain.ErrInvalidInput):
		json.WriteValidationError(w, err)
	case errors.Is(err, domain.ErrFileTooLarge):
		json.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, domain.ErrRoomNotFound):
		json.WriteError(w, http.StatusNotFound, "Room not found or expired")
	case errors.Is(err, domain.ErrRoomAlreadyExists):
		json.WriteError(w, http.StatusConflict, "Room already has files")
	case errors.Is(err, domain.ErrPresignUnsupported):
		json.WriteError(w, http.StatusNotImplemented, "Direct uploads are not supported by this server")
	case errors.Is(err, domain.ErrUploadFailed):
		h.logError(r, err)
		json.WriteError(w, http.StatusInternalServerError, "Upload failed")
	default:
		h.logError(r, err)
		json.WriteInternalError(w)
	}
}

func (h *Handler) logError(r *http.Request, err error) {
	h.logger.Error(logging.RequestResponse, logging.ExternalService, "request failed", map[logging.ExtraKey]any{
		logging.Method:       r.Method,
		logging.Path:         r.URL.Path,
		logging.ErrorMessage: err.Error(),
	})
}
