package router

import (
	"container/list"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/multiplayer/events"
)

// Handler receives a decoded server message
type Handler func(events.Message)

// Router fans typed server messages out to subscribers in subscription order.
// It is owned by the game loop goroutine and is not safe for concurrent use.
type Router struct {
	handlers map[events.Kind]*list.List

	dispatching bool
	queue       []events.Message
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	router *Router
	kind   events.Kind
	elem   *list.Element
}

type entry struct {
	fn      Handler
	removed bool
}

// New creates an empty router
func New() *Router {
	return &Router{handlers: make(map[events.Kind]*list.List)}
}

// Subscribe registers fn for every message of the given kind
func (r *Router) Subscribe(kind events.Kind, fn Handler) *Subscription {
	l, ok := r.handlers[kind]
	if !ok {
		l = list.New()
		r.handlers[kind] = l
	}
	return &Subscription{router: r, kind: kind, elem: l.PushBack(&entry{fn: fn})}
}

// On registers a typed handler. The kind is taken from the zero value of T.
func On[T events.Message](r *Router, fn func(T)) *Subscription {
	var zero T
	return r.Subscribe(zero.Kind(), func(msg events.Message) {
		if typed, ok := msg.(T); ok {
			fn(typed)
		}
	})
}

// Unsubscribe removes the handler. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.elem == nil {
		return
	}
	s.elem.Value.(*entry).removed = true
	if l, ok := s.router.handlers[s.kind]; ok {
		l.Remove(s.elem)
	}
	s.elem = nil
}

// Active reports whether the subscription is still registered
func (s *Subscription) Active() bool {
	return s != nil && s.elem != nil && !s.elem.Value.(*entry).removed
}

// Count returns the number of handlers subscribed to kind
func (r *Router) Count(kind events.Kind) int {
	if l, ok := r.handlers[kind]; ok {
		return l.Len()
	}
	return 0
}

// Dispatch delivers msg to each subscriber of its kind. A Dispatch called from
// inside a handler is queued and delivered once the current one completes.
func (r *Router) Dispatch(msg events.Message) {
	if r.dispatching {
		r.queue = append(r.queue, msg)
		return
	}

	r.dispatching = true
	defer func() { r.dispatching = false }()

	r.deliver(msg)
	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.deliver(next)
	}
	r.queue = nil
}

func (r *Router) deliver(msg events.Message) {
	l, ok := r.handlers[msg.Kind()]
	if !ok {
		return
	}

	// Handlers subscribed during delivery wait for the next message;
	// handlers unsubscribed during delivery are skipped
	targets := make([]*entry, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		targets = append(targets, e.Value.(*entry))
	}
	for _, t := range targets {
		if t.removed {
			continue
		}
		r.call(msg, t.fn)
	}
}

func (r *Router) call(msg events.Message, fn Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("kind", string(msg.Kind())).
				Err(fmt.Errorf("handler panic: %v", rec)).
				Msg("subscriber panicked, continuing dispatch")
		}
	}()
	fn(msg)
}

// Reset removes every subscription
func (r *Router) Reset() {
	for _, l := range r.handlers {
		for e := l.Front(); e != nil; e = e.Next() {
			e.Value.(*entry).removed = true
		}
	}
	r.handlers = make(map[events.Kind]*list.List)
	r.queue = nil
}
