package collection

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/models"
	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
	"github.com/mcdev12/voyager/go/internal/multiplayer/mirror"
	"github.com/mcdev12/voyager/go/internal/multiplayer/router"
)

var (
	ErrUnknownResource  = errors.New("unknown resource")
	ErrNotCollectible   = errors.New("resource is not collectible")
	ErrAlreadyCollected = errors.New("resource already collected")
)

// DefaultConfirmTimeout bounds how long a claim may stay unresolved
const DefaultConfirmTimeout = 5 * time.Second

// Feedback is told when a claim is made and when one is rolled back
type Feedback interface {
	Collected(r models.SharedResource)
	Reverted(r models.SharedResource)
}

// Sender carries the claim to the server
type Sender interface {
	LocalID() string
	SendResourceCollected(resourceID string, position models.Vec3) error
}

// Outcome is how a claim was resolved
type Outcome int

const (
	OutcomeConfirmed Outcome = iota
	OutcomeLost
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeLost:
		return "lost"
	case OutcomeExpired:
		return "expired"
	}
	return "unknown"
}

type claim struct {
	resource models.SharedResource
	credit   int
	deadline time.Time
}

// Arbiter applies local collections optimistically and reconciles them with
// whatever the server later says. Server state always wins.
// Owned by the game loop goroutine.
type Arbiter struct {
	mirror   *mirror.Mirror
	sender   Sender
	feedback Feedback
	clock    clockwork.Clock
	timeout  time.Duration

	pending   map[string]*claim
	confirmed int
	conflicts int

	subs []*router.Subscription
}

// New creates an arbiter and subscribes it to authoritative resource state
func New(m *mirror.Mirror, r *router.Router, sender Sender, feedback Feedback, clock clockwork.Clock, timeout time.Duration) *Arbiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	a := &Arbiter{
		mirror:   m,
		sender:   sender,
		feedback: feedback,
		clock:    clock,
		timeout:  timeout,
		pending:  make(map[string]*claim),
	}
	a.subs = []*router.Subscription{
		router.On(r, a.onSnapshot),
		router.On(r, a.onResourceUpdate),
	}
	return a
}

// Collect claims resourceID for the local player. It reports true when the
// claim went out; the credit stays speculative until the server agrees.
func (a *Arbiter) Collect(resourceID string) (bool, error) {
	r, ok := a.mirror.Resource(resourceID)
	if !ok {
		return false, fmt.Errorf("collect %s: %w", resourceID, ErrUnknownResource)
	}
	if !r.Kind.Collectible() {
		return false, fmt.Errorf("collect %s: %w", resourceID, ErrNotCollectible)
	}
	if r.Collected {
		return false, fmt.Errorf("collect %s: %w", resourceID, ErrAlreadyCollected)
	}

	if err := a.sender.SendResourceCollected(r.ID, r.Position); err != nil {
		return false, fmt.Errorf("collect %s: %w", resourceID, err)
	}

	a.mirror.MarkCollected(r.ID)
	c := &claim{
		resource: r,
		credit:   r.ScoreValue(),
		deadline: a.clock.Now().Add(a.timeout),
	}
	a.pending[r.ID] = c
	if a.feedback != nil {
		a.feedback.Collected(r)
	}

	log.Debug().
		Str("resource_id", r.ID).
		Str("kind", string(r.Kind)).
		Int("credit", c.credit).
		Msg("resource claimed")
	return true, nil
}

// Tick expires claims the server never answered
func (a *Arbiter) Tick() {
	if len(a.pending) == 0 {
		return
	}
	now := a.clock.Now()
	for _, id := range a.pendingIDs() {
		if c := a.pending[id]; !now.Before(c.deadline) {
			a.resolve(id, OutcomeExpired, "")
		}
	}
}

func (a *Arbiter) onSnapshot(s events.Snapshot) {
	present := make(map[string]models.SharedResource, len(s.Resources))
	for _, r := range s.Resources {
		present[r.ID] = r
	}
	for _, id := range a.pendingIDs() {
		r, ok := present[id]
		switch {
		case !ok:
			// Gone from the authoritative set; without attribution the claim stands
			a.resolve(id, OutcomeConfirmed, "")
		case r.Collected:
			a.resolve(id, OutcomeConfirmed, "")
		default:
			a.resolve(id, OutcomeLost, "")
		}
	}
}

func (a *Arbiter) onResourceUpdate(u events.ResourceUpdate) {
	local := a.sender.LocalID()
	for _, id := range u.Removed {
		if _, ok := a.pending[id]; !ok {
			continue
		}
		if u.CollectedBy == "" || u.CollectedBy == local {
			a.resolve(id, OutcomeConfirmed, u.CollectedBy)
		} else {
			a.resolve(id, OutcomeLost, u.CollectedBy)
		}
	}
	for _, r := range u.Added {
		if _, ok := a.pending[r.ID]; !ok {
			continue
		}
		if r.Collected {
			a.resolve(r.ID, OutcomeConfirmed, "")
		} else {
			a.resolve(r.ID, OutcomeLost, "")
		}
	}
}

func (a *Arbiter) resolve(id string, outcome Outcome, winner string) {
	c, ok := a.pending[id]
	if !ok {
		return
	}
	delete(a.pending, id)

	if outcome == OutcomeConfirmed {
		a.confirmed += c.credit
		log.Debug().Str("resource_id", id).Int("credit", c.credit).Msg("claim confirmed")
		return
	}

	// Lost or expired: roll back everything attributable to the claim
	a.mirror.RevertSpeculative(id)
	a.conflicts++
	if a.feedback != nil {
		a.feedback.Reverted(c.resource)
	}
	log.Warn().
		Str("resource_id", id).
		Stringer("outcome", outcome).
		Str("collected_by", winner).
		Int("credit", c.credit).
		Msg("state conflict, speculative collection rolled back")
}

// Pending reports whether resourceID has an unresolved claim
func (a *Arbiter) Pending(resourceID string) bool {
	_, ok := a.pending[resourceID]
	return ok
}

// Score returns confirmed credit plus credit still awaiting confirmation
func (a *Arbiter) Score() int {
	score := a.confirmed
	for _, c := range a.pending {
		score += c.credit
	}
	return score
}

// ConfirmedScore returns credit the server has agreed to
func (a *Arbiter) ConfirmedScore() int {
	return a.confirmed
}

// Conflicts returns how many claims were rolled back
func (a *Arbiter) Conflicts() int {
	return a.conflicts
}

// Reset forgets every claim and all credit, for a new session
func (a *Arbiter) Reset() {
	a.pending = make(map[string]*claim)
	a.confirmed = 0
	a.conflicts = 0
}

// Close unsubscribes from the router
func (a *Arbiter) Close() {
	for _, sub := range a.subs {
		sub.Unsubscribe()
	}
	a.subs = nil
}

func (a *Arbiter) pendingIDs() []string {
	ids := make([]string, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
