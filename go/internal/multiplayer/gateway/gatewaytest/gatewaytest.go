// Package gatewaytest provides an in-memory gateway.Transport and a scripted
// server peer for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
)

// DefaultWait bounds every blocking helper
const DefaultWait = 2 * time.Second

// Transport is an in-memory gateway.Transport. Every successful Dial yields
// a ServerConn retrievable with Accept.
type Transport struct {
	mu       sync.Mutex
	dialErr  error
	dials    int
	accepted chan *ServerConn
}

// NewTransport creates a transport with room for a few unaccepted dials
func NewTransport() *Transport {
	return &Transport{accepted: make(chan *ServerConn, 16)}
}

// FailDials makes subsequent dials fail with err; nil restores them
func (t *Transport) FailDials(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErr = err
}

// Dials returns the number of Dial calls so far
func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *Transport) Dial(ctx context.Context, target gateway.Target) (gateway.Conn, error) {
	t.mu.Lock()
	t.dials++
	err := t.dialErr
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srv := &ServerConn{
		Target:     target,
		toClient:   make(chan []byte, 256),
		fromClient: make(chan []byte, 1024),
		closed:     make(chan struct{}),
	}
	select {
	case t.accepted <- srv:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &clientConn{srv: srv}, nil
}

// Accept waits for the next dial
func (t *Transport) Accept(wait time.Duration) (*ServerConn, error) {
	select {
	case srv := <-t.accepted:
		return srv, nil
	case <-time.After(wait):
		return nil, errors.New("no dial within wait")
	}
}

// ServerConn is the server end of one in-memory connection
type ServerConn struct {
	Target gateway.Target

	toClient   chan []byte
	fromClient chan []byte
	closed     chan struct{}
	once       sync.Once
}

// Send writes a typed envelope to the client
func (s *ServerConn) Send(kind events.Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	frame, err := json.Marshal(events.Envelope{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return s.SendRaw(frame)
}

// SendRaw writes an arbitrary frame to the client
func (s *ServerConn) SendRaw(frame []byte) error {
	select {
	case <-s.closed:
		return gateway.ErrConnClosed
	case s.toClient <- frame:
		return nil
	}
}

// Next returns the next frame the client wrote
func (s *ServerConn) Next(wait time.Duration) (events.Envelope, error) {
	var env events.Envelope
	select {
	case frame := <-s.fromClient:
		if err := json.Unmarshal(frame, &env); err != nil {
			return env, fmt.Errorf("unmarshal client frame: %w", err)
		}
		return env, nil
	case <-time.After(wait):
		return env, errors.New("no client frame within wait")
	}
}

// Expect skips client frames until one of the given kind arrives
func (s *ServerConn) Expect(kind events.Kind, wait time.Duration) (events.Envelope, error) {
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return events.Envelope{}, fmt.Errorf("no %s frame within wait", kind)
		}
		env, err := s.Next(remaining)
		if err != nil {
			return env, fmt.Errorf("waiting for %s: %w", kind, err)
		}
		if env.Type == kind {
			return env, nil
		}
	}
}

// Drop closes the connection from the server side
func (s *ServerConn) Drop() {
	s.once.Do(func() { close(s.closed) })
}

// Closed reports whether either side has closed the connection
func (s *ServerConn) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type clientConn struct {
	srv *ServerConn
}

func (c *clientConn) ReadMessage() ([]byte, error) {
	// Frames already queued are delivered before the close is observed
	select {
	case frame := <-c.srv.toClient:
		return frame, nil
	default:
	}
	select {
	case frame := <-c.srv.toClient:
		return frame, nil
	case <-c.srv.closed:
		return nil, gateway.ErrConnClosed
	}
}

func (c *clientConn) WriteMessage(data []byte) error {
	if c.srv.Closed() {
		return gateway.ErrConnClosed
	}
	select {
	case <-c.srv.closed:
		return gateway.ErrConnClosed
	case c.srv.fromClient <- data:
		return nil
	}
}

func (c *clientConn) Ping() error {
	if c.srv.Closed() {
		return gateway.ErrConnClosed
	}
	return nil
}

func (c *clientConn) Close() error {
	c.srv.Drop()
	return nil
}
