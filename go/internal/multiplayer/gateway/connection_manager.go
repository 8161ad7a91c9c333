package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/mirror"
	"github.com/mcdev12/voyager/go/internal/multiplayer/router"
)

var errReentrant = errors.New("connection manager called from a message handler")

// ConnectionManager owns the session connection: it joins, applies server
// messages to the mirror, fans them out through the router and carries
// outbound messages.
//
// All methods are meant to be called from the game loop goroutine. The pumps
// of the underlying connection never touch this struct.
type ConnectionManager struct {
	transport Transport
	clock     Clock
	config    ConnectionConfig

	mirror *mirror.Mirror
	router *router.Router

	state     State
	identity  models.Identity
	sessionID string
	lastErr   error

	// gen increases on every attempt and teardown; frames from older
	// generations are discarded
	gen          uint64
	inbound      chan frame
	link         *link
	cancelDial   context.CancelFunc
	joinDeadline time.Time

	reconnect reconnectState

	subscriptions []*router.Subscription
	observers     []func(from, to State)
	polling       bool

	metrics Metrics
}

type reconnectState struct {
	active  bool // Inside a reconnect cycle
	pending bool // An attempt is scheduled
	at      time.Time
	attempt int
}

// Option configures a ConnectionManager
type Option func(*ConnectionManager)

// WithClock replaces the real clock, typically with a clockwork.FakeClock
func WithClock(clock Clock) Option {
	return func(m *ConnectionManager) {
		m.clock = clock
	}
}

// NewConnectionManager creates a connection manager writing into m and
// dispatching through r
func NewConnectionManager(transport Transport, m *mirror.Mirror, r *router.Router, config ConnectionConfig, opts ...Option) *ConnectionManager {
	config = config.withDefaults()
	cm := &ConnectionManager{
		transport: transport,
		clock:     clockwork.NewRealClock(),
		config:    config,
		mirror:    m,
		router:    r,
		inbound:   make(chan frame, config.InboundBufferSize),
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// State returns the current connection state
func (m *ConnectionManager) State() State {
	return m.state
}

// Joined reports whether the session is established
func (m *ConnectionManager) Joined() bool {
	return m.state == StateJoined
}

// Identity returns the identity the current connection was opened with
func (m *ConnectionManager) Identity() models.Identity {
	return m.identity
}

// LocalID returns the local player id of the current connection
func (m *ConnectionManager) LocalID() string {
	return m.identity.PlayerID
}

// SessionID returns the session being joined or joined
func (m *ConnectionManager) SessionID() string {
	return m.sessionID
}

// LastError returns the failure that last moved the connection to Disconnected
func (m *ConnectionManager) LastError() error {
	return m.lastErr
}

// Reconnecting reports whether an automatic reconnect attempt is scheduled
func (m *ConnectionManager) Reconnecting() bool {
	return m.reconnect.pending
}

// Stats returns a copy of the connection counters
func (m *ConnectionManager) Stats() Stats {
	return m.metrics.Snapshot()
}

// Metrics exposes the live counters, safe to read from any goroutine
func (m *ConnectionManager) Metrics() *Metrics {
	return &m.metrics
}

// OnStateChange registers an observer called on every state transition
func (m *ConnectionManager) OnStateChange(fn func(from, to State)) {
	m.observers = append(m.observers, fn)
}

// Subscribe registers a connection-scoped handler. It survives automatic
// reconnects and is removed by Disconnect.
func (m *ConnectionManager) Subscribe(kind events.Kind, fn router.Handler) *router.Subscription {
	sub := m.router.Subscribe(kind, fn)
	m.subscriptions = append(m.subscriptions, sub)
	return sub
}

// Connect joins sessionID as identity and blocks until the server answers
// with a snapshot, the join times out, the transport fails or ctx is done.
//
// Connecting to the session already joined is a no-op. Connecting to another
// session tears the current one down first.
func (m *ConnectionManager) Connect(ctx context.Context, identity models.Identity, sessionID string) error {
	if m.polling {
		return errReentrant
	}
	if sessionID == "" {
		return fmt.Errorf("connect: empty session id")
	}
	if identity.PlayerID == "" {
		return fmt.Errorf("connect: empty player id")
	}

	sameTarget := m.sessionID == sessionID && m.identity == identity
	switch {
	case m.state == StateJoined && sameTarget:
		return nil
	case m.state == StateConnecting && sameTarget:
		// Join the attempt already in flight
	default:
		if m.state != StateDisconnected || m.reconnect.pending {
			log.Info().
				Str("session_id", m.sessionID).
				Str("next_session_id", sessionID).
				Msg("tearing down previous session")
			m.Disconnect()
		}
		if m.sessionID != sessionID {
			m.mirror.Reset()
		}
		m.identity = identity
		m.sessionID = sessionID
		m.mirror.SetLocalID(identity.PlayerID)
		m.reconnect = reconnectState{}
		m.begin()
	}

	return m.awaitJoin(ctx)
}

// awaitJoin runs the loop until the current attempt resolves
func (m *ConnectionManager) awaitJoin(ctx context.Context) error {
	timer := m.clock.NewTimer(m.joinDeadline.Sub(m.clock.Now()))
	defer stopAndDrainTimer(timer)

	for {
		select {
		case <-ctx.Done():
			log.Warn().
				Err(ctx.Err()).
				Str("session_id", m.sessionID).
				Msg("join cancelled")
			m.Disconnect()
			return ctx.Err()

		case f := <-m.inbound:
			m.handleFrame(f)

		case <-timer.Chan():
			m.fail(ErrJoinTimeout)
		}

		switch m.state {
		case StateJoined:
			return nil
		case StateDisconnected:
			return m.lastErr
		}
	}
}

// begin starts a new attempt against the stored session and identity
func (m *ConnectionManager) begin() {
	m.gen++
	gen := m.gen
	target := Target{
		SessionID:   m.sessionID,
		PlayerID:    m.identity.PlayerID,
		DisplayName: m.identity.DisplayName,
	}

	dialCtx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.joinDeadline = m.clock.Now().Add(m.config.JoinTimeout)
	m.lastErr = nil
	m.setState(StateConnecting)

	log.Info().
		Str("session_id", target.SessionID).
		Str("player_id", target.PlayerID).
		Int("attempt", m.reconnect.attempt).
		Msg("connecting to session")

	go func() {
		conn, err := m.transport.Dial(dialCtx, target)
		select {
		case m.inbound <- frame{gen: gen, kind: frameDialed, conn: conn, err: err}:
		case <-dialCtx.Done():
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

// Poll applies every frame that has arrived since the last call, in arrival
// order, and drives join deadlines and reconnects. It never blocks.
func (m *ConnectionManager) Poll() {
	if m.polling {
		log.Warn().Msg("poll called from a message handler, ignoring")
		return
	}
	m.polling = true
	defer func() { m.polling = false }()

	for n := len(m.inbound); n > 0; n-- {
		m.handleFrame(<-m.inbound)
	}

	now := m.clock.Now()
	if m.state == StateConnecting && !now.Before(m.joinDeadline) {
		m.fail(ErrJoinTimeout)
	}
	if m.state == StateDisconnected && m.reconnect.pending && !now.Before(m.reconnect.at) {
		m.reconnect.pending = false
		m.metrics.Reconnects.Add(1)
		m.begin()
	}
}

func (m *ConnectionManager) handleFrame(f frame) {
	if f.gen != m.gen {
		m.metrics.StaleFrames.Add(1)
		if f.kind == frameDialed && f.conn != nil {
			f.conn.Close()
		}
		return
	}

	switch f.kind {
	case frameDialed:
		if f.err != nil {
			m.fail(fmt.Errorf("%w: dial: %v", ErrTransport, f.err))
			return
		}
		m.cancelDial()
		m.cancelDial = nil
		m.link = newLink(m.gen, f.conn, m.inbound, m.clock, m.config)
		m.link.start()

		join := events.Join{
			PlayerID:    m.identity.PlayerID,
			DisplayName: m.identity.DisplayName,
			SessionID:   m.sessionID,
		}
		if err := m.send(join); err != nil {
			m.fail(fmt.Errorf("%w: send join: %v", ErrTransport, err))
		}

	case frameMessage:
		if f.link != m.link {
			m.metrics.StaleFrames.Add(1)
			return
		}
		m.metrics.MessagesReceived.Add(1)
		msg, err := events.Decode(f.data)
		if err != nil {
			m.metrics.ProtocolErrors.Add(1)
			log.Warn().
				Err(err).
				Str("session_id", m.sessionID).
				Msg("dropping malformed server message")
			return
		}
		m.apply(msg)

	case frameClosed:
		if f.link != m.link {
			return
		}
		m.fail(fmt.Errorf("%w: %v", ErrTransport, f.err))
	}
}

// apply writes msg into the mirror and then dispatches it
func (m *ConnectionManager) apply(msg events.Message) {
	if m.state == StateConnecting {
		snap, ok := msg.(events.Snapshot)
		if !ok {
			// The snapshot replaces everything, so deltas before it carry nothing
			m.metrics.EarlyDeltas.Add(1)
			log.Debug().
				Str("kind", string(msg.Kind())).
				Msg("discarding delta received before snapshot")
			return
		}
		diff := m.mirror.ApplySnapshot(snap)
		wasReconnect := m.reconnect.active
		m.reconnect = reconnectState{}
		m.metrics.Joins.Add(1)
		m.setState(StateJoined)

		log.Info().
			Str("session_id", m.sessionID).
			Str("player_id", m.identity.PlayerID).
			Int("remote_players", m.mirror.PlayerCount()).
			Int("resources", len(snap.Resources)).
			Int("players_removed", len(diff.PlayersRemoved)).
			Bool("resync", wasReconnect).
			Msg("joined session")

		m.router.Dispatch(msg)
		return
	}

	if m.state != StateJoined {
		return
	}

	if _, err := m.mirror.Apply(msg); err != nil {
		log.Warn().Err(err).Str("kind", string(msg.Kind())).Msg("failed to apply server message")
		return
	}
	m.router.Dispatch(msg)
}

// fail moves to Disconnected after a connection-level error and arms the
// reconnect cycle when an established session was lost
func (m *ConnectionManager) fail(err error) {
	wasJoined := m.state == StateJoined
	m.teardown()
	m.lastErr = err

	if !wasJoined {
		m.metrics.JoinFailures.Add(1)
	}
	log.Warn().
		Err(err).
		Str("session_id", m.sessionID).
		Stringer("state", m.state).
		Msg("connection failed")

	m.setState(StateDisconnected)
	if wasJoined {
		// Remote players are unknown until the resync snapshot
		m.mirror.Reset()
	}

	policy := m.config.Reconnect
	if !policy.Enabled || (!wasJoined && !m.reconnect.active) {
		return
	}

	m.reconnect.active = true
	m.reconnect.attempt++
	if policy.Exhausted(m.reconnect.attempt) {
		log.Error().
			Str("session_id", m.sessionID).
			Int("attempts", m.reconnect.attempt-1).
			Msg("giving up on reconnect")
		m.reconnect = reconnectState{}
		return
	}

	delay := policy.Delay(m.reconnect.attempt)
	m.reconnect.pending = true
	m.reconnect.at = m.clock.Now().Add(delay)
	log.Info().
		Str("session_id", m.sessionID).
		Int("attempt", m.reconnect.attempt).
		Dur("delay", delay).
		Msg("reconnect scheduled")
}

// teardown invalidates the current attempt and closes its connection
func (m *ConnectionManager) teardown() {
	m.gen++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.link != nil {
		m.link.close()
		m.link = nil
	}
}

// Disconnect leaves the session. It is safe to call in any state, takes
// effect immediately and also cancels a pending reconnect.
func (m *ConnectionManager) Disconnect() {
	m.teardown()
	m.reconnect = reconnectState{}
	m.joinDeadline = time.Time{}

	for _, sub := range m.subscriptions {
		sub.Unsubscribe()
	}
	m.subscriptions = nil

	if m.state != StateDisconnected {
		log.Info().Str("session_id", m.sessionID).Msg("disconnected from session")
		m.mirror.Reset()
	}
	m.setState(StateDisconnected)
}

func (m *ConnectionManager) setState(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	for _, fn := range m.observers {
		fn(from, to)
	}
}

// SendPositionUpdate reports the local transform
func (m *ConnectionManager) SendPositionUpdate(t models.Transform) error {
	if m.state != StateJoined {
		return ErrNotJoined
	}
	return m.send(events.PositionUpdate{
		PlayerID:  m.identity.PlayerID,
		SessionID: m.sessionID,
		Position:  t.Position,
		Rotation:  t.Rotation,
		Velocity:  t.Velocity,
	})
}

// SendStatusUpdate reports the local score and ship damage
func (m *ConnectionManager) SendStatusUpdate(score, shipDamage int) error {
	if m.state != StateJoined {
		return ErrNotJoined
	}
	return m.send(events.StatusUpdate{
		PlayerID:   m.identity.PlayerID,
		SessionID:  m.sessionID,
		Score:      score,
		ShipDamage: shipDamage,
	})
}

// SendResourceCollected claims a resource for the local player
func (m *ConnectionManager) SendResourceCollected(resourceID string, position models.Vec3) error {
	if m.state != StateJoined {
		return ErrNotJoined
	}
	return m.send(events.ResourceCollected{
		PlayerID:   m.identity.PlayerID,
		SessionID:  m.sessionID,
		ResourceID: resourceID,
		Position:   position,
	})
}

// send enqueues without blocking. A full buffer drops the message.
func (m *ConnectionManager) send(msg events.Outbound) error {
	if m.link == nil {
		return ErrNotJoined
	}
	frame, err := events.Encode(msg)
	if err != nil {
		return err
	}
	if !m.link.enqueue(frame) {
		m.metrics.SendDropped.Add(1)
		log.Warn().
			Str("kind", string(msg.Kind())).
			Str("link_id", m.link.id).
			Msg("send buffer full, dropping message")
		return nil
	}
	m.metrics.MessagesSent.Add(1)
	return nil
}
