package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Hub tracks the viewers of each quiz session. A session may be open in
// several tabs; every tab receives the same view updates.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[*Connection]struct{}
	logger   zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]map[*Connection]struct{}),
		logger:   logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Join attaches a connection to a session.
func (h *Hub) Join(sessionID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	viewers, ok := h.sessions[sessionID]
	if !ok {
		viewers = make(map[*Connection]struct{})
		h.sessions[sessionID] = viewers
	}
	viewers[conn] = struct{}{}
	h.logger.Info().Str("session_id", sessionID.String()).Int("viewers", len(viewers)).Msg("viewer joined")
}

// Leave detaches and closes a connection.
func (h *Hub) Leave(sessionID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	viewers := h.sessions[sessionID]
	if _, ok := viewers[conn]; !ok {
		return
	}
	conn.Close()
	delete(viewers, conn)
	if len(viewers) == 0 {
		delete(h.sessions, sessionID)
	}
	h.logger.Info().Str("session_id", sessionID.String()).Msg("viewer left")
}

// CloseSession disconnects every viewer of a session.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.sessions[sessionID] {
		conn.Close()
	}
	delete(h.sessions, sessionID)
}

// Viewers returns the number of connections attached to a session.
func (h *Hub) Viewers(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Broadcast sends a message to every viewer of a session and returns the first send error.
func (h *Hub) Broadcast(sessionID uuid.UUID, msg Message) error {
	return h.BroadcastExcept(sessionID, nil, msg)
}

// BroadcastExcept is Broadcast skipping one connection.
func (h *Hub) BroadcastExcept(sessionID uuid.UUID, except *Connection, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var firstErr error
	for conn := range h.sessions[sessionID] {
		if conn == except {
			continue
		}
		if err := conn.Send(msg); err != nil && firstErr == nil {
			firstErr = err
			h.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("broadcast send failed")
		}
	}
	return firstErr
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 64),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
}

// WritePump sends queued messages and keeps the connection alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionClosed = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull    = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
