package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransport marks every connection-level failure
	ErrTransport = errors.New("transport error")
	// ErrJoinTimeout is returned when no snapshot arrives within the join window
	ErrJoinTimeout = fmt.Errorf("%w: join timeout", ErrTransport)
	// ErrNotJoined is returned by sends attempted outside the Joined state
	ErrNotJoined = errors.New("not joined to a session")
	// ErrConnClosed is returned by a Conn after Close
	ErrConnClosed = errors.New("connection closed")
)

// Target identifies who is connecting to which session
type Target struct {
	SessionID   string
	PlayerID    string
	DisplayName string
}

// Conn is one bidirectional message channel to the game server.
// ReadMessage is called from a single goroutine, and so are WriteMessage and
// Ping. Close may be called from anywhere and unblocks ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Ping() error
	Close() error
}

// Transport opens connections to the game server
type Transport interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}
