// internal/history/ring.go
package history

import (
	"sync"
	"time"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// DefaultCapacity keeps one hour of readings at the instrument's 1 Hz rate.
const DefaultCapacity = 3600

// Ring is a fixed-capacity window of the most recent readings.
// One writer (the poller), many readers.
type Ring struct {
	mu   sync.RWMutex
	buf  []reading.Reading
	next int
	full bool
}

// New creates a ring. capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]reading.Reading, capacity)}
}

// Append stores r, overwriting the oldest entry when full.
func (h *Ring) Append(r reading.Reading) {
	h.mu.Lock()
	h.buf[h.next] = r
	h.next++
	if h.next == len(h.buf) {
		h.next = 0
		h.full = true
	}
	h.mu.Unlock()
}

// Len is the number of retained readings.
func (h *Ring) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Cap is the configured capacity.
func (h *Ring) Cap() int { return len(h.buf) }

// Window returns, oldest first, the retained readings whose timestamp is
// within window of the newest one. window <= 0 returns everything.
func (h *Ring) Window(window time.Duration) []reading.Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	start := 0
	if h.full {
		n = len(h.buf)
		start = h.next
	}
	if n == 0 {
		return nil
	}

	all := make([]reading.Reading, 0, n)
	for i := 0; i < n; i++ {
		all = append(all, h.buf[(start+i)%len(h.buf)])
	}
	if window <= 0 {
		return all
	}

	cutoff := all[len(all)-1].Timestamp.Add(-window)
	i := 0
	for i < len(all) && all[i].Timestamp.Before(cutoff) {
		i++
	}
	return all[i:]
}
