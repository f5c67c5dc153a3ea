package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
)

// Hub fans room lifecycle events out to the websockets watching each code.
type Hub struct {
	rooms    map[domain.RoomCode]map[string]*Client // code -> client ID -> client
	upgrader websocket.Upgrader
	logger   logging.Logger
	mu       sync.RWMutex
}

func NewHub(allowedOrigins []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		rooms:    make(map[domain.RoomCode]map[string]*Client),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// NewClient wraps an upgraded connection watching code.
func (h *Hub) NewClient(conn *websocket.Conn, code domain.RoomCode) *Client {
	return newClient(conn, code, h.logger)
}

func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return h.upgrader.Upgrade(w, r, nil)
}

func (h *Hub) Subscribe(cl *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[cl.RoomCode]
	if !ok {
		clients = make(map[string]*Client)
		h.rooms[cl.RoomCode] = clients
	}
	clients[cl.ID] = cl
}

func (h *Hub) Unsubscribe(cl *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(cl)
}

func (h *Hub) removeLocked(cl *Client) {
	clients, ok := h.rooms[cl.RoomCode]
	if !ok {
		return
	}
	if _, ok := clients[cl.ID]; !ok {
		return
	}

	delete(clients, cl.ID)
	close(cl.Message)

	if len(clients) == 0 {
		delete(h.rooms, cl.RoomCode)
	}
}

func (h *Hub) Watchers(code domain.RoomCode) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[code])
}

// Deliver queues msg for a single subscribed client. It reports false when
// the client is gone or its buffer is full.
func (h *Hub) Deliver(cl *Client, msg *WSMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.rooms[cl.RoomCode][cl.ID]; !ok {
		return false
	}
	select {
	case cl.Message <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) broadcastLocked(code domain.RoomCode, msg *WSMessage) {
	for _, cl := range h.rooms[code] {
		select {
		case cl.Message <- msg:
		default:
			h.logger.Warn(logging.Internal, logging.Publish, "watcher buffer full, dropping event", map[logging.ExtraKey]any{
				logging.RoomCode: code.String(),
				logging.ClientID: cl.ID,
				logging.Event:    msg.Type,
			})
		}
	}
}

func (h *Hub) RoomCreated(ctx context.Context, room domain.Room) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.broadcastLocked(room.Code, NewRoomReady(room.Code, room.Files, room.ExpiresAt))
}

// RoomExpired tells the watchers and then disconnects them; nothing else can
// happen to an expired code.
func (h *Hub) RoomExpired(ctx context.Context, code domain.RoomCode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(code, NewRoomExpired(code))
	for _, cl := range h.rooms[code] {
		h.removeLocked(cl)
	}
}
