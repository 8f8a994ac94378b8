// Package broadcast fans serialized frame metrics out to live subscribers.
//
// Every subscriber owns a small bounded queue. Publishing never blocks: when a
// queue is full its oldest payload is evicted so slow consumers always see the
// freshest data and the producer is never held back.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// QueueCapacity is the per-subscriber queue bound.
const QueueCapacity = 2

// Stats holds delivery counters for one subscriber.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Subscriber receives payloads on C until it is unsubscribed.
type Subscriber struct {
	ID string

	mu      sync.Mutex // serialises enqueue against close
	ch      chan []byte
	closed  bool
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// C returns the receive side of the queue. It is closed on unsubscribe.
func (s *Subscriber) C() <-chan []byte { return s.ch }

// Stats returns a snapshot of the delivery counters.
func (s *Subscriber) Stats() Stats {
	return Stats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}
}

// enqueue delivers payload, evicting the oldest entries until it fits.
// It reports how many entries were evicted.
func (s *Subscriber) enqueue(payload []byte) (delivered bool, evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, 0
	}
	for {
		select {
		case s.ch <- payload:
			s.sent.Add(1)
			return true, evicted
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
			evicted++
		default:
			// Consumer drained the queue between the two selects.
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub is the set of live subscribers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]*Subscriber
	capacity int
}

// NewHub creates a hub whose subscribers hold up to capacity payloads.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return &Hub{subs: make(map[string]*Subscriber), capacity: capacity}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ID: uuid.NewString(), ch: make(chan []byte, h.capacity)}
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber and closes its queue. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// Publish offers payload to every subscriber. The payload must not be mutated
// afterwards since subscribers share it. It returns delivery totals.
func (h *Hub) Publish(payload []byte) (sent, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		ok, evicted := s.enqueue(payload)
		if ok {
			sent++
		}
		dropped += evicted
	}
	return sent, dropped
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns per-subscriber counters keyed by subscriber id.
func (h *Hub) Stats() map[string]Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Stats, len(h.subs))
	for id, s := range h.subs {
		out[id] = s.Stats()
	}
	return out
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}
