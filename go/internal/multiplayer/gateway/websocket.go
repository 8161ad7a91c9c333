package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig holds configuration for the WebSocket transport
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	Header           http.Header
}

// DefaultWebSocketConfig returns default WebSocket configuration
func DefaultWebSocketConfig(serverURL string) WebSocketConfig {
	return WebSocketConfig{
		URL:              serverURL,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		MaxMessageSize:   1 << 20, // Snapshots carry every resource in the session
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
	}
}

// WebSocketTransport dials the game server over gorilla/websocket
type WebSocketTransport struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

// NewWebSocketTransport creates a WebSocket transport
func NewWebSocketTransport(config WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
	}
}

// Dial opens a connection with the session and player passed as query parameters
func (t *WebSocketTransport) Dial(ctx context.Context, target Target) (Conn, error) {
	u, err := url.Parse(t.config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", target.SessionID)
	q.Set("player_id", target.PlayerID)
	q.Set("player_name", target.DisplayName)
	u.RawQuery = q.Encode()

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), t.config.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &wsConn{conn: conn, config: t.config}
	if t.config.MaxMessageSize > 0 {
		conn.SetReadLimit(t.config.MaxMessageSize)
	}
	c.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	config WebSocketConfig
	once   sync.Once
}

func (c *wsConn) extendReadDeadline() {
	if c.config.ReadTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}

func (c *wsConn) writeDeadline() time.Time {
	if c.config.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.config.WriteTimeout)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %v", ErrConnClosed, err)
			}
			return nil, err
		}
		c.extendReadDeadline()
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return message, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.conn.SetWriteDeadline(c.writeDeadline())
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, c.writeDeadline())
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
