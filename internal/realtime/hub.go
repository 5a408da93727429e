package realtime

import (
	"context"
	"sync"
)

// Source produces change events until ctx is done. A source that may
// have missed events, for example after reconnecting, publishes a
// ResyncEvent.
type Source interface {
	Run(ctx context.Context, publish func(Event)) error
}

// Filter decides whether a subscriber sees an event.
type Filter func(Event) bool

const subscriptionBuffer = 256

// Subscription receives the events accepted by its filter. When the hub
// had to drop an event for it, or the source asked for a resync, a
// signal arrives on Resync; the subscriber must then rebuild its state
// from the database. Signals coalesce.
type Subscription struct {
	Events <-chan Event
	Resync <-chan struct{}

	cancel func()
}

// Cancel unsubscribes and closes Events. It is safe to call twice.
func (s *Subscription) Cancel() {
	s.cancel()
}

type subscription struct {
	ch     chan Event
	resync chan struct{}
	filter Filter
}

func (s *subscription) signal() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

// Hub fans events out to in-process subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event and is told to
// resync instead.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*subscription]struct{}),
	}
}

// Subscribe registers filter (nil accepts every event).
func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &subscription{
		ch:     make(chan Event, subscriptionBuffer),
		resync: make(chan struct{}, 1),
		filter: filter,
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return &Subscription{
		Events: sub.ch,
		Resync: sub.resync,
		cancel: func() {
			once.Do(func() {
				h.mu.Lock()
				delete(h.subs, sub)
				h.mu.Unlock()
				close(sub.ch)
			})
		},
	}
}

func (h *Hub) Publish(e Event) {
	if e.Type == EventResync {
		h.Resync()
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.signal()
		}
	}
}

// Resync tells every subscriber to rebuild its state.
func (h *Hub) Resync() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		sub.signal()
	}
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
