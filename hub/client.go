package hub

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var (
	ErrChannelClosed  = errors.New("channel is closed")
	ErrSendBufferFull = errors.New("client send buffer is full")
)

// WSChannel is a Channel over a gorilla websocket connection.
// A single writer goroutine owns the connection, so every message goes out as its own frame.
type WSChannel struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewWSChannel(conn *websocket.Conn, logger *slog.Logger) *WSChannel {
	sessionID := uuid.NewString()
	return &WSChannel{
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		sessionID: sessionID,
		logger:    logger.With(slog.String("session_id", sessionID)),
	}
}

func (c *WSChannel) SessionID() string {
	return c.sessionID
}

// Send queues one message for the writer. It never blocks: a full buffer means the client is too slow.
func (c *WSChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *WSChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close stops the writer, which then sends a close frame and closes the connection. Safe to call twice.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// Run starts the writer and blocks in the read loop until the connection ends.
// Messages are handed to onMessage one at a time, in arrival order.
func (c *WSChannel) Run(onMessage func(data []byte), onClose func()) {
	go c.writePump()
	c.readPump(onMessage, onClose)
}

func (c *WSChannel) readPump(onMessage func(data []byte), onClose func()) {
	defer func() {
		_ = c.Close()
		_ = c.conn.Close()
		if onClose != nil {
			onClose()
		}
		c.logger.Debug("read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}
		onMessage(message)
	}
}

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.logger.Debug("write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write websocket message", slog.Any("error", err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
