// internal/status/snapshot.go
package status

import (
	"sync/atomic"
	"time"
)

// Snapshot is the health state as published by the acquisition loop.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health              Health
	ConsecutiveFailures int
	Stale               bool

	LastError     string
	LastErrorCode uint16

	// Since is when Health last changed. Zero while Unknown.
	Since time.Time
}

// Code maps the snapshot onto the register health code.
func (s Snapshot) Code() uint16 {
	switch s.Health {
	case Live:
		return CodeLive
	case Degraded:
		if s.Stale {
			return CodeStale
		}
		return CodeDegraded
	case Down:
		return CodeDown
	default:
		return CodeUnknown
	}
}

// Board holds the current Snapshot.
// Single writer (the acquisition loop), any number of readers.
type Board struct {
	v atomic.Pointer[Snapshot]
}

// Load returns the current snapshot; Unknown before the first Store.
func (b *Board) Load() Snapshot {
	if s := b.v.Load(); s != nil {
		return *s
	}
	return Snapshot{Health: Unknown}
}

// Store replaces the current snapshot.
func (b *Board) Store(s Snapshot) {
	b.v.Store(&s)
}
