package game

import (
	"sync"
	"sync/atomic"
)

// Subscription is a registered event callback. Closing it from inside its own
// callback guarantees no further delivery; closing it from another goroutine
// stops every delivery that has not started yet.
type Subscription struct {
	hub    *Hub
	id     uint64
	fn     func(Event)
	closed atomic.Bool
}

func (s *Subscription) Close() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.hub.remove(s.id)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s != nil && !s.closed.Load()
}

// Hub fans events out to subscribers. Publish must be called from a single
// goroutine to keep arrival order.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
	order  []uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

func (h *Hub) Subscribe(fn func(Event)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{hub: h, id: h.nextID, fn: fn}
	h.subs[s.id] = s
	h.order = append(h.order, s.id)

	return s
}

// Publish delivers e to the subscribers registered when the call starts.
// Subscribers added while dispatching only see later events.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	snapshot := make([]*Subscription, 0, len(h.order))
	for _, id := range h.order {
		if s, ok := h.subs[id]; ok {
			snapshot = append(snapshot, s)
		}
	}
	h.mu.Unlock()

	for _, s := range snapshot {
		if s.closed.Load() {
			continue
		}
		s.fn(e)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}
