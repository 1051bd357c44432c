// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/broadcast"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/history"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/metrics"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/poller"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/source"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// ErrNotYetAvailable is returned by Latest before the first reading.
var ErrNotYetAvailable = errors.New("engine: no reading yet")

// ErrShutdownTimeout is returned by Run when the acquisition loop did
// not stop within the grace period.
var ErrShutdownTimeout = errors.New("engine: acquisition loop did not stop within grace period")

// Config bundles what the engine owns.
type Config struct {
	Poll            poller.Config
	QueueCapacity   int
	HistoryCapacity int
	ShutdownGrace   time.Duration
}

// Engine is the acquisition, normalization and broadcast core.
// Queries never block on acquisition.
type Engine struct {
	latest  status.Latest
	board   status.Board
	history *history.Ring
	hub     *broadcast.Hub
	poller  *poller.Poller
	grace   time.Duration
	log     *zap.Logger
}

// New opens the source once through factory (fail fast) and wires the
// loop, hub and cells. m may be nil.
func New(cfg Config, factory source.Factory, log *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		history: history.New(cfg.HistoryCapacity),
		hub:     broadcast.New(cfg.QueueCapacity, log.Named("hub"), m),
		grace:   cfg.ShutdownGrace,
		log:     log,
	}

	p, err := poller.Build(cfg.Poll, factory, poller.Sinks{
		Latest:  &e.latest,
		Board:   &e.board,
		History: e.history,
		Hub:     e.hub,
	}, log.Named("poller"), m)
	if err != nil {
		return nil, err
	}
	e.poller = p
	return e, nil
}

// Health returns the current health snapshot. Never fails.
func (e *Engine) Health() status.Snapshot {
	return e.board.Load()
}

// Latest returns the most recent reading.
func (e *Engine) Latest() (reading.Reading, error) {
	r, ok := e.latest.Load()
	if !ok {
		return reading.Reading{}, ErrNotYetAvailable
	}
	return r, nil
}

// OpenStream subscribes to every reading acquired from now on.
// The caller must Close the subscriber when done.
func (e *Engine) OpenStream() (*broadcast.Subscriber, error) {
	return e.hub.Subscribe()
}

// Export returns retained readings within window of the newest one,
// oldest first. window <= 0 returns everything retained.
func (e *Engine) Export(window time.Duration) []reading.Reading {
	return e.history.Window(window)
}

// HubStats exposes fan-out counters.
func (e *Engine) HubStats() broadcast.Stats {
	return e.hub.Stats()
}

// Run drives acquisition until ctx is cancelled. After cancellation it
// waits at most the grace period for the in-flight tick; the hub is
// closed either way so streams end promptly.
func (e *Engine) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.poller.Run(ctx)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	if e.grace <= 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(e.grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		e.hub.Close()
		e.log.Warn("abandoning in-flight acquisition tick", zap.Duration("grace", e.grace))
		return ErrShutdownTimeout
	}
}
