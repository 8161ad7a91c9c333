package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS transport
type NATSConfig struct {
	URL           string
	SubjectPrefix string // Client frames go to <prefix>.<session>.client
	MaxReconnects int
	ReconnectWait time.Duration
	FlushTimeout  time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS transport configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "voyager.sessions",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		FlushTimeout:  5 * time.Second,
		BufferSize:    1024,
	}
}

// NATSTransport carries session frames over a shared NATS connection.
// Each Dial gets its own reply inbox; the server answers the join on that
// inbox and keeps publishing the session stream to it.
type NATSTransport struct {
	nc     *nats.Conn
	config NATSConfig
}

// NewNATSTransport connects to NATS
func NewNATSTransport(config NATSConfig) (*NATSTransport, error) {
	opts := []nats.Option{
		nats.Name("voyager-client"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSTransportConn(nc, config), nil
}

// NewNATSTransportConn wraps an existing NATS connection
func NewNATSTransportConn(nc *nats.Conn, config NATSConfig) *NATSTransport {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultNATSConfig().BufferSize
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = DefaultNATSConfig().FlushTimeout
	}
	return &NATSTransport{nc: nc, config: config}
}

// ClientSubject returns the subject client frames for a session are published to
func (t *NATSTransport) ClientSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.client", t.config.SubjectPrefix, sessionID)
}

// Dial subscribes a fresh inbox for the connection's server frames
func (t *NATSTransport) Dial(ctx context.Context, target Target) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.nc.IsClosed() {
		return nil, fmt.Errorf("NATS connection closed")
	}

	inbox := t.nc.NewRespInbox()
	ch := make(chan *nats.Msg, t.config.BufferSize)
	sub, err := t.nc.ChanSubscribe(inbox, ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", inbox, err)
	}

	return &natsConn{
		nc:      t.nc,
		sub:     sub,
		ch:      ch,
		subject: t.ClientSubject(target.SessionID),
		inbox:   inbox,
		player:  target.PlayerID,
		flush:   t.config.FlushTimeout,
		status:  t.nc.StatusChanged(nats.CLOSED),
		closed:  make(chan struct{}),
	}, nil
}

// Close closes the underlying NATS connection
func (t *NATSTransport) Close() {
	t.nc.Close()
}

type natsConn struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	ch      chan *nats.Msg
	subject string
	inbox   string
	player  string
	flush   time.Duration
	status  chan nats.Status

	closed chan struct{}
	once   sync.Once
}

func (c *natsConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.ch:
		return msg.Data, nil
	case <-c.status:
		return nil, fmt.Errorf("%w: NATS connection closed", ErrConnClosed)
	case <-c.closed:
		return nil, ErrConnClosed
	}
}

func (c *natsConn) WriteMessage(data []byte) error {
	msg := &nats.Msg{
		Subject: c.subject,
		Reply:   c.inbox,
		Header:  nats.Header{},
		Data:    data,
	}
	msg.Header.Set("Player-Id", c.player)
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", c.subject, err)
	}
	return nil
}

func (c *natsConn) Ping() error {
	return c.nc.FlushTimeout(c.flush)
}

func (c *natsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.sub.Unsubscribe()
		c.nc.RemoveStatusListener(c.status)
	})
	return err
}
