package files

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/json"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/storage"
)

const routePrefix = "/files/"

// Handler serves objects written by the local disk store. An object is served
// only while the registry lists it in a live room, so a link lives exactly as
// long as the room that hands it out.
type Handler struct {
	root       http.Dir
	roomPrefix string
	registry   domain.RoomRegistry
	logger     logging.Logger
}

func NewHandler(basePath, roomPrefix string, registry domain.RoomRegistry, logger logging.Logger) *Handler {
	if roomPrefix == "" {
		roomPrefix = domain.DefaultRoomPrefix
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{
		root:       http.Dir(basePath),
		roomPrefix: roomPrefix,
		registry:   registry,
		logger:     logger,
	}
}

func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, routePrefix)

	decoded, ok := domain.DecodeObjectKey(h.roomPrefix, key)
	if !ok || strings.HasPrefix(path.Base(key), ".tmp-") {
		json.WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	listed, err := h.listedInLiveRoom(r.Context(), decoded.Code, key)
	if err != nil {
		h.logger.Error(logging.Storage, logging.Retrieval, "failed to look up room for file", map[logging.ExtraKey]any{
			logging.RoomCode:     decoded.Code.String(),
			logging.ObjectKey:    key,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}
	if !listed {
		json.WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := h.root.Open("/" + key)
	if err != nil {
		json.WriteError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		json.WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", storage.ContentDisposition(key))
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *Handler) listedInLiveRoom(ctx context.Context, code domain.RoomCode, key string) (bool, error) {
	room, err := h.registry.Get(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return false, nil
		}
		return false, err
	}

	for _, f := range room.Files {
		if f.Key == key {
			return true, nil
		}
	}
	return false, nil
}
