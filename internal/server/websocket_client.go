package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is how long a single frame write may take.
	writeWait = 10 * time.Second

	// pongWait is how long the peer may stay silent before the read fails.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketClient wraps a WebSocket connection carrying JSON frames.
type WebSocketClient struct {
	conn *websocket.Conn
	wmu  sync.Mutex // gorilla allows one concurrent writer
}

// NewWebSocketClient creates a WebSocketClient. maxMessageSize limits
// inbound frames; 0 leaves the default.
func NewWebSocketClient(conn *websocket.Conn, maxMessageSize int64) *WebSocketClient {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &WebSocketClient{conn: conn}
}

// ReadMessage returns the next non-empty text frame.
func (c *WebSocketClient) ReadMessage() ([]byte, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if len(data) > 0 {
			return data, nil
		}
	}
}

// WriteJSON sends v as a text frame.
func (c *WebSocketClient) WriteJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Ping sends a ping control frame.
func (c *WebSocketClient) Ping() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame, then closes the connection.
func (c *WebSocketClient) Close() error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()

	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
