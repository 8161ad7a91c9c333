package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// errLinkClosed is returned to the write pump once close has started
var errLinkClosed = errors.New("link closed")

type frameKind int

const (
	frameDialed frameKind = iota
	frameMessage
	frameClosed
)

// frame is the only thing pumps hand to the game loop. gen ties it to the
// connection attempt that produced it.
type frame struct {
	gen  uint64
	kind frameKind
	link *link
	conn Conn
	data []byte
	err  error
}

// link owns the pumps of one open connection
type link struct {
	id   string
	gen  uint64
	conn Conn

	send    chan []byte
	inbound chan<- frame
	done    chan struct{}
	once    sync.Once

	// writeMu spans the closed check and the write, so close can wait out
	// a write already in progress
	writeMu sync.Mutex

	clock        Clock
	pingInterval time.Duration
}

func newLink(gen uint64, conn Conn, inbound chan<- frame, clock Clock, config ConnectionConfig) *link {
	return &link{
		id:           uuid.New().String(),
		gen:          gen,
		conn:         conn,
		send:         make(chan []byte, config.SendBufferSize),
		inbound:      inbound,
		done:         make(chan struct{}),
		clock:        clock,
		pingInterval: config.PingInterval,
	}
}

func (l *link) start() {
	go l.writePump()
	go l.readPump()
}

// enqueue never blocks; it reports false when the message was dropped
func (l *link) enqueue(data []byte) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.send <- data:
		return true
	default:
		return false
	}
}

// close stops both pumps. Once it returns no further frame reaches the
// connection and anything still buffered is discarded.
func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		// Wait out a write already past the closed check. Writes are bounded
		// by the transport's write deadline.
		l.writeMu.Lock()
		err := l.conn.Close()
		l.writeMu.Unlock()
		if err != nil {
			log.Debug().Err(err).Str("link_id", l.id).Msg("close connection")
		}

		for {
			select {
			case <-l.send:
			default:
				return
			}
		}
	})
}

// write runs fn unless the link is closing
func (l *link) write(fn func() error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	select {
	case <-l.done:
		return errLinkClosed
	default:
	}
	return fn()
}

// emit blocks until the loop accepts the frame or the link is closed
func (l *link) emit(f frame) {
	f.gen = l.gen
	f.link = l
	select {
	case l.inbound <- f:
	case <-l.done:
	}
}

// writePump handles sending messages and pings on the connection
func (l *link) writePump() {
	var ping <-chan time.Time
	if l.pingInterval > 0 {
		ticker := l.clock.NewTicker(l.pingInterval)
		defer ticker.Stop()
		ping = ticker.Chan()
	}

	for {
		select {
		case <-l.done:
			return

		case message := <-l.send:
			err := l.write(func() error { return l.conn.WriteMessage(message) })
			if errors.Is(err, errLinkClosed) {
				return
			}
			if err != nil {
				log.Error().
					Err(err).
					Str("link_id", l.id).
					Msg("failed to write message")
				l.emit(frame{kind: frameClosed, err: err})
				return
			}

		case <-ping:
			err := l.write(l.conn.Ping)
			if errors.Is(err, errLinkClosed) {
				return
			}
			if err != nil {
				log.Error().
					Err(err).
					Str("link_id", l.id).
					Msg("failed to send ping")
				l.emit(frame{kind: frameClosed, err: err})
				return
			}
		}
	}
}

// readPump handles reading messages from the connection
func (l *link) readPump() {
	for {
		message, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				// Closed locally, nobody is waiting for this
				return
			default:
			}
			l.emit(frame{kind: frameClosed, err: err})
			return
		}
		l.emit(frame{kind: frameMessage, data: message})
	}
}

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
