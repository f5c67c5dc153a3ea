package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type connWrapper struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (w *connWrapper) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *connWrapper) WritePing() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *connWrapper) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}

// Client is one websocket watching a single room code.
type Client struct {
	conn     *connWrapper
	Message  chan *WSMessage
	ID       string
	RoomCode domain.RoomCode
	logger   logging.Logger
}

func newClient(conn *websocket.Conn, code domain.RoomCode, logger logging.Logger) *Client {
	return &Client{
		conn:     &connWrapper{conn: conn},
		Message:  make(chan *WSMessage, 16), // buffered to avoid dead-locks on slow clients
		ID:       uuid.NewString(),
		RoomCode: code,
		logger:   logger,
	}
}

// ReadMessage only exists to notice the peer going away; watchers send nothing.
func (c *Client) ReadMessage(hub *Hub) {
	defer func() {
		hub.Unsubscribe(c)
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(512)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.RequestResponse, logging.Subscribe, "websocket read failed", map[logging.ExtraKey]any{
					logging.ClientID:     c.ID,
					logging.RoomCode:     c.RoomCode.String(),
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
	}
}

// WriteMessage drains the client's queue until the hub closes it.
func (c *Client) WriteMessage() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Message:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn(logging.RequestResponse, logging.Subscribe, "websocket write failed", map[logging.ExtraKey]any{
					logging.ClientID:     c.ID,
					logging.RoomCode:     c.RoomCode.String(),
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		case <-ticker.C:
			if err := c.conn.WritePing(); err != nil {
				return
			}
		}
	}
}
