// internal/writer/status_loop.go
package writer

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// HealthSource is read once per status tick.
type HealthSource interface {
	Health() status.Snapshot
}

// StatusLoop owns seconds_in_error and pushes the status block at 1 Hz.
// The acquisition loop never waits on it.
type StatusLoop struct {
	src      HealthSource
	w        StatusWriter
	log      *zap.Logger
	metrics  SinkMetrics
	interval time.Duration

	secondsInError uint16
}

// NewStatusLoop creates the loop. metrics may be nil.
func NewStatusLoop(src HealthSource, w StatusWriter, log *zap.Logger, metrics SinkMetrics) *StatusLoop {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusLoop{
		src:      src,
		w:        w,
		log:      log,
		metrics:  metrics,
		interval: time.Second,
	}
}

// Run writes the full block on start, then ticks until ctx is done.
func (l *StatusLoop) Run(ctx context.Context) {
	l.tick()

	t := time.NewTicker(l.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.tick()
		}
	}
}

func (l *StatusLoop) tick() {
	snap := l.src.Health()

	switch snap.Health {
	case status.Degraded, status.Down:
		// HARD INVARIANT: seconds_in_error MUST NOT wrap
		if l.secondsInError < math.MaxUint16 {
			l.secondsInError++
		}
	default:
		l.secondsInError = 0
	}

	err := l.w.WriteStatus(status.BlockFrom(snap, l.secondsInError))
	if l.metrics != nil {
		l.metrics.IncSinkWrite("modbus_status", err == nil)
	}
	if err != nil {
		l.log.Warn("status write failed", zap.Error(err))
	}
}
