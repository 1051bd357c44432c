// internal/broadcast/subscriber.go
package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// Terminal stream reasons.
var (
	// ErrEvicted ends a stream whose consumer could not keep up.
	// The consumer should reconnect rather than read a gap-riddled stream.
	ErrEvicted = errors.New("broadcast: subscriber evicted (backpressure)")

	// ErrClosed ends every stream on hub shutdown.
	ErrClosed = errors.New("broadcast: hub closed")

	// ErrUnsubscribed ends a stream the consumer closed itself.
	ErrUnsubscribed = errors.New("broadcast: unsubscribed")
)

// Subscriber is one open stream. It yields readings in acquisition
// order until it is evicted, unsubscribed or the hub closes.
type Subscriber struct {
	id  uuid.UUID
	hub *Hub
	ch  chan reading.Reading

	// parked holds the one reading that did not fit into a full queue.
	// Only touched by Publish, under hub.mu.
	parked *reading.Reading

	endOnce sync.Once
	done    chan struct{}
	err     error
}

func newSubscriber(h *Hub, capacity int) *Subscriber {
	return &Subscriber{
		id:   uuid.New(),
		hub:  h,
		ch:   make(chan reading.Reading, capacity),
		done: make(chan struct{}),
	}
}

// ID is the opaque subscriber identity.
func (s *Subscriber) ID() uuid.UUID { return s.id }

// C yields readings. It is closed after the last buffered reading once
// the stream has ended; Err then reports why.
func (s *Subscriber) C() <-chan reading.Reading { return s.ch }

// Err returns the terminal reason, or nil while the stream is open.
func (s *Subscriber) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Next returns the next reading. After the stream ends and the buffer
// is drained it returns the terminal reason.
func (s *Subscriber) Next(ctx context.Context) (reading.Reading, error) {
	select {
	case r, ok := <-s.ch:
		if !ok {
			return reading.Reading{}, s.Err()
		}
		return r, nil
	case <-ctx.Done():
		return reading.Reading{}, ctx.Err()
	}
}

// Close unsubscribes. Idempotent.
func (s *Subscriber) Close() {
	s.hub.Unsubscribe(s)
}

// end records the reason and closes the queue. Caller holds hub.mu,
// which also serializes every send on ch.
func (s *Subscriber) end(reason error) {
	s.endOnce.Do(func() {
		s.err = reason
		s.parked = nil
		close(s.done)
		close(s.ch)
	})
}

// offer is a non-blocking delivery attempt. It reports false when the
// queue has stayed full across two consecutive publishes.
func (s *Subscriber) offer(r reading.Reading) bool {
	if s.parked != nil {
		select {
		case s.ch <- *s.parked:
			s.parked = nil
		default:
			return false
		}
	}

	select {
	case s.ch <- r:
	default:
		s.parked = &r
	}
	return true
}
