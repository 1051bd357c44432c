// internal/broadcast/hub.go
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// Metrics is the subset of collectors the hub reports to.
type Metrics interface {
	SetSubscribers(n int)
	IncPublished()
	IncEvicted()
}

// DefaultQueueCapacity is the per-subscriber queue size when none is configured.
const DefaultQueueCapacity = 64

// Hub fans readings out to every active subscriber.
//
// Publish never blocks: delivery is a non-blocking channel send per
// subscriber, done under mu only for the duration of the iteration.
// A subscriber that cannot accept a reading gets it parked; if its
// queue is still full on the next publish it is evicted, so a slow
// consumer costs the publisher at most one failed send per publish.
type Hub struct {
	capacity int
	log      *zap.Logger
	metrics  Metrics

	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscriber
	closed bool

	published atomic.Uint64
	delivered atomic.Uint64
	evicted   atomic.Uint64
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Subscribers int
	Published   uint64
	Delivered   uint64
	Evicted     uint64
}

// New creates a hub. capacity <= 0 selects DefaultQueueCapacity.
// metrics may be nil.
func New(capacity int, log *zap.Logger, metrics Metrics) *Hub {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		capacity: capacity,
		log:      log,
		metrics:  metrics,
		subs:     make(map[uuid.UUID]*Subscriber),
	}
}

// Subscribe registers a new subscriber with an empty queue.
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	s := newSubscriber(h, h.capacity)
	h.subs[s.id] = s
	h.reportSubscribers()

	h.log.Debug("subscriber added", zap.Stringer("id", s.id), zap.Int("subscribers", len(h.subs)))
	return s, nil
}

// Unsubscribe removes s and ends its stream. Idempotent.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	s.end(ErrUnsubscribed)
	h.reportSubscribers()

	h.log.Debug("subscriber removed", zap.Stringer("id", s.id), zap.Int("subscribers", len(h.subs)))
}

// Publish delivers r to every active subscriber in acquisition order.
// It returns promptly regardless of subscriber count or speed.
func (h *Hub) Publish(r reading.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.published.Add(1)
	if h.metrics != nil {
		h.metrics.IncPublished()
	}

	for id, s := range h.subs {
		if s.offer(r) {
			h.delivered.Add(1)
			continue
		}

		delete(h.subs, id)
		s.end(ErrEvicted)
		h.evicted.Add(1)
		if h.metrics != nil {
			h.metrics.IncEvicted()
		}
		h.log.Warn("subscriber evicted: queue full across consecutive publishes",
			zap.Stringer("id", id),
			zap.Int("queue_capacity", h.capacity),
		)
	}
	h.reportSubscribers()
}

// Close ends every stream with ErrClosed. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, s := range h.subs {
		delete(h.subs, id)
		s.end(ErrClosed)
	}
	h.reportSubscribers()
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()

	return Stats{
		Subscribers: n,
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Evicted:     h.evicted.Load(),
	}
}

// IsTerminal reports whether err is one of the stream end reasons.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrEvicted) || errors.Is(err, ErrClosed) || errors.Is(err, ErrUnsubscribed)
}

// reportSubscribers expects h.mu held.
func (h *Hub) reportSubscribers() {
	if h.metrics != nil {
		h.metrics.SetSubscribers(len(h.subs))
	}
}
