package throttle

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/models"
)

// DefaultInterval is the minimum spacing between two position reports
const DefaultInterval = 100 * time.Millisecond

// Link is where throttled samples go
type Link interface {
	Joined() bool
	SendPositionUpdate(t models.Transform) error
}

// Throttler rate-limits local transform reports. Record keeps only the
// latest sample; Tick sends it when the interval has elapsed.
// Not safe for concurrent use.
type Throttler struct {
	link     Link
	clock    clockwork.Clock
	interval time.Duration

	pending  *models.Transform
	lastSent time.Time
	sentOnce bool
	stopped  bool

	sent      int
	discarded int
}

// New creates a throttler sending through link at most once per interval
func New(link Link, clock clockwork.Clock, interval time.Duration) *Throttler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttler{link: link, clock: clock, interval: interval}
}

// Record stores t as the next sample, replacing any unsent one
func (t *Throttler) Record(sample models.Transform) {
	if t.stopped {
		return
	}
	if !t.link.Joined() {
		t.pending = nil
		t.discarded++
		return
	}
	t.pending = &sample
}

// Tick sends the pending sample if the interval allows. It reports whether
// a message was sent.
func (t *Throttler) Tick() bool {
	if t.stopped || t.pending == nil {
		return false
	}
	if !t.link.Joined() {
		t.pending = nil
		t.discarded++
		return false
	}

	now := t.clock.Now()
	if t.sentOnce && now.Sub(t.lastSent) < t.interval {
		return false
	}

	sample := *t.pending
	t.pending = nil
	if err := t.link.SendPositionUpdate(sample); err != nil {
		// Position reports are fire-and-forget
		log.Debug().Err(err).Msg("position update not sent")
		return false
	}

	t.lastSent = now
	t.sentOnce = true
	t.sent++
	return true
}

// Stop discards the pending sample and disables further sends
func (t *Throttler) Stop() {
	t.stopped = true
	t.pending = nil
}

// Reset re-enables a stopped throttler and forgets send history
func (t *Throttler) Reset() {
	t.stopped = false
	t.pending = nil
	t.sentOnce = false
	t.lastSent = time.Time{}
}

// Sent returns the number of samples sent
func (t *Throttler) Sent() int {
	return t.sent
}

// Discarded returns the number of samples dropped while not joined
func (t *Throttler) Discarded() int {
	return t.discarded
}
