package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/collection"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
	"github.com/mcdev12/voyager/go/internal/multiplayer/mirror"
	"github.com/mcdev12/voyager/go/internal/multiplayer/reconciler"
	"github.com/mcdev12/voyager/go/internal/multiplayer/router"
	"github.com/mcdev12/voyager/go/internal/multiplayer/throttle"
	"github.com/mcdev12/voyager/go/internal/profiles"
)

var ErrClosed = errors.New("client closed")

const profileTimeout = 5 * time.Second

// Options configures a Client. Transport and Identity are required.
type Options struct {
	Transport gateway.Transport
	Identity  models.Identity

	// Scene receives remote player entities; nil drops them
	Scene reconciler.Scene
	// Feedback is told about optimistic collections and rollbacks
	Feedback collection.Feedback
	// Profiles persists the player at session boundaries when set
	Profiles profiles.Store
	Clock    clockwork.Clock

	Connection     gateway.ConnectionConfig
	Reconciler     reconciler.Config
	ReportInterval time.Duration
	ConfirmTimeout time.Duration
}

// Client is everything one player needs to take part in a session. Every
// method runs on the caller's goroutine; call them from the game loop only.
type Client struct {
	identity models.Identity
	profiles profiles.Store

	mirror     *mirror.Mirror
	router     *router.Router
	conn       *gateway.ConnectionManager
	reconciler *reconciler.Reconciler
	throttler  *throttle.Throttler
	arbiter    *collection.Arbiter

	subscriptions []*router.Subscription
	shipDamage    int
	lastTransform *models.Transform
	closed        bool
}

func New(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("new client: transport is required")
	}
	if opts.Identity.PlayerID == "" {
		return nil, fmt.Errorf("new client: player id is required")
	}
	if opts.Identity.DisplayName == "" {
		opts.Identity.DisplayName = models.DefaultDisplayName
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Scene == nil {
		opts.Scene = nopScene{}
	}
	if opts.Connection == (gateway.ConnectionConfig{}) {
		opts.Connection = gateway.DefaultConnectionConfig()
	}
	if opts.Reconciler == (reconciler.Config{}) {
		opts.Reconciler = reconciler.DefaultConfig()
	}

	c := &Client{
		identity: opts.Identity,
		profiles: opts.Profiles,
		mirror:   mirror.New(opts.Identity.PlayerID),
		router:   router.New(),
	}
	c.conn = gateway.NewConnectionManager(opts.Transport, c.mirror, c.router, opts.Connection, gateway.WithClock(opts.Clock))
	c.reconciler = reconciler.New(opts.Scene, opts.Reconciler)
	c.throttler = throttle.New(c.conn, opts.Clock, opts.ReportInterval)
	c.arbiter = collection.New(c.mirror, c.router, c.conn, opts.Feedback, opts.Clock, opts.ConfirmTimeout)
	return c, nil
}

// Join connects to sessionID and blocks until the snapshot arrives
func (c *Client) Join(ctx context.Context, sessionID string) error {
	if c.closed {
		return ErrClosed
	}
	if prev := c.conn.SessionID(); prev != "" && prev != sessionID {
		c.arbiter.Reset()
		c.shipDamage = 0
	}
	c.throttler.Reset()

	if err := c.conn.Connect(ctx, c.identity, sessionID); err != nil {
		return fmt.Errorf("join %s: %w", sessionID, err)
	}
	c.persist(ctx)
	return nil
}

// Frame advances the client by one game loop iteration
func (c *Client) Frame(dt time.Duration) {
	if c.closed {
		return
	}
	c.conn.Poll()
	c.arbiter.Tick()
	c.reconciler.Tick(c.mirror, dt.Seconds())
	c.throttler.Tick()
}

// ReportTransform records the local player's transform. It is sent on a
// later Frame, at most once per report interval.
func (c *Client) ReportTransform(t models.Transform) {
	c.lastTransform = &t
	c.throttler.Record(t)
}

// Collect claims a resource for the local player
func (c *Client) Collect(resourceID string) (bool, error) {
	return c.arbiter.Collect(resourceID)
}

// ReportStatus tells the server the local score and ship damage
func (c *Client) ReportStatus(shipDamage int) error {
	c.shipDamage = shipDamage
	return c.conn.SendStatusUpdate(c.arbiter.Score(), shipDamage)
}

// Resources lists the shared resources of the session
func (c *Client) Resources() []models.SharedResource {
	return c.mirror.Resources()
}

// Score returns confirmed plus speculative score
func (c *Client) Score() int {
	return c.arbiter.Score()
}

// Subscribe registers fn for messages of type T until Close. The handler
// outlives reconnects, session switches and cancelled joins.
func Subscribe[T events.Message](c *Client, fn func(T)) *router.Subscription {
	sub := router.On(c.router, fn)
	if c.closed {
		sub.Unsubscribe()
		return sub
	}
	c.subscriptions = append(c.subscriptions, sub)
	return sub
}

// OnStateChange registers an observer for connection state transitions
func (c *Client) OnStateChange(fn func(from, to gateway.State)) {
	c.conn.OnStateChange(fn)
}

func (c *Client) Identity() models.Identity          { return c.identity }
func (c *Client) State() gateway.State               { return c.conn.State() }
func (c *Client) Mirror() *mirror.Mirror             { return c.mirror }
func (c *Client) Reconciler() *reconciler.Reconciler { return c.reconciler }

// Reconnecting reports whether the connection is waiting to retry on its own
func (c *Client) Reconnecting() bool {
	return c.conn.Reconnecting()
}

// Status copies the values worth showing outside the game loop
func (c *Client) Status() Status {
	s := Status{
		State:          c.conn.State().String(),
		Reconnecting:   c.conn.Reconnecting(),
		SessionID:      c.conn.SessionID(),
		PlayerID:       c.identity.PlayerID,
		DisplayName:    c.identity.DisplayName,
		RemotePlayers:  c.mirror.PlayerCount(),
		Resources:      len(c.mirror.Resources()),
		Weather:        c.mirror.Weather(),
		Score:          c.arbiter.Score(),
		ConfirmedScore: c.arbiter.ConfirmedScore(),
		Conflicts:      c.arbiter.Conflicts(),
		ShipDamage:     c.shipDamage,
		Leaderboard:    c.mirror.Leaderboard(),
		Connection:     c.conn.Stats(),
		PositionsSent:  c.throttler.Sent(),
	}
	if err := c.conn.LastError(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

// Close persists the profile and leaves the session. The client cannot be
// used afterwards.
func (c *Client) Close(ctx context.Context) {
	if c.closed {
		return
	}
	if c.conn.Joined() {
		c.persist(ctx)
	}
	c.throttler.Stop()
	c.conn.Disconnect()
	c.arbiter.Close()
	for _, sub := range c.subscriptions {
		sub.Unsubscribe()
	}
	c.subscriptions = nil
	c.router.Reset()
	c.reconciler.Clear()
	c.closed = true
	log.Info().Str("player_id", c.identity.PlayerID).Msg("client closed")
}

func (c *Client) persist(ctx context.Context) {
	if c.profiles == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()

	p := profiles.Profile{
		PlayerID:   c.identity.PlayerID,
		Name:       c.identity.DisplayName,
		SessionID:  c.conn.SessionID(),
		Score:      c.arbiter.ConfirmedScore(),
		ShipDamage: c.shipDamage,
	}
	if c.lastTransform != nil {
		pos, rot := c.lastTransform.Position, c.lastTransform.Rotation
		p.Position, p.Rotation = &pos, &rot
	}
	if err := c.profiles.UpsertProfile(ctx, p); err != nil {
		log.Warn().Err(err).Str("player_id", p.PlayerID).Msg("failed to persist profile")
	}
}

type nopScene struct{}

func (nopScene) Spawn(string, reconciler.Appearance) {}
func (nopScene) Move(string, models.Transform)       {}
func (nopScene) Relabel(string, string)              {}
func (nopScene) Despawn(string)                      {}
