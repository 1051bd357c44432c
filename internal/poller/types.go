// internal/poller/types.go
package poller

import (
	"time"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/broadcast"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/history"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// Config is the runtime config the poller needs.
type Config struct {
	Interval time.Duration

	// SoftThreshold consecutive failures mark the state stale;
	// HardThreshold consecutive failures take the source Down.
	SoftThreshold int
	HardThreshold int

	BackoffMin time.Duration
	BackoffMax time.Duration
}

// Sinks are the cells the poller is the single writer of.
// History is optional.
type Sinks struct {
	Latest  *status.Latest
	Board   *status.Board
	History *history.Ring
	Hub     *broadcast.Hub
}

// Metrics is what the poller reports. Optional.
type Metrics interface {
	ObserveReading(doseRate float64)
	IncFailure(kind string)
	SetHealth(code uint16)
	IncReopen(ok bool)
}

// Outcome is the result of one tick.
type Outcome struct {
	// Reading is set on success only.
	Reading *reading.Reading
	Err     error

	Health status.Health

	// Delay is the wait before the next tick: the interval, or the
	// current backoff while Down.
	Delay time.Duration
}
