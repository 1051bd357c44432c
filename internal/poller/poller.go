// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/source"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// Poller drives a Source on a fixed period.
//
// It is the only writer of the latest-reading cell and the health
// board. PollOnce and Run must not be called concurrently.
type Poller struct {
	cfg     Config
	factory source.Factory
	sinks   Sinks
	log     *zap.Logger
	metrics Metrics
	now     func() time.Time

	src      source.Source
	failures int
	reopen   bool
	backoff  time.Duration
}

// New creates a poller. src may be nil, in which case the first tick
// opens one through factory.
func New(cfg Config, src source.Source, factory source.Factory, sinks Sinks, log *zap.Logger, metrics Metrics) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.SoftThreshold < 1 || cfg.HardThreshold < cfg.SoftThreshold {
		return nil, errors.New("poller: thresholds must satisfy 1 <= soft <= hard")
	}
	if cfg.BackoffMin <= 0 || cfg.BackoffMax < cfg.BackoffMin {
		return nil, errors.New("poller: backoff must satisfy 0 < min <= max")
	}
	if factory == nil {
		return nil, errors.New("poller: source factory required")
	}
	if sinks.Latest == nil || sinks.Board == nil || sinks.Hub == nil {
		return nil, errors.New("poller: latest, board and hub sinks required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Poller{
		cfg:     cfg,
		factory: factory,
		sinks:   sinks,
		log:     log,
		metrics: metrics,
		now:     time.Now,
		src:     src,
		reopen:  src == nil,
	}, nil
}

// PollOnce performs exactly one tick.
func (p *Poller) PollOnce(ctx context.Context) Outcome {
	if p.reopen {
		if err := p.reopenSource(); err != nil {
			return p.fail(err)
		}
	}

	r, err := p.src.NextReading(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down: not the instrument's fault
			return Outcome{Err: ctx.Err(), Health: p.sinks.Board.Load().Health}
		}
		return p.fail(err)
	}
	return p.succeed(r)
}

func (p *Poller) succeed(r reading.Reading) Outcome {
	p.failures = 0
	p.backoff = 0

	p.setHealth(status.Snapshot{Health: status.Live})

	// latest first: anyone woken by the publish must see it
	p.sinks.Latest.Store(r)
	if p.sinks.History != nil {
		p.sinks.History.Append(r)
	}
	p.sinks.Hub.Publish(r)

	if p.metrics != nil {
		p.metrics.ObserveReading(r.DoseRate.Value)
	}

	return Outcome{Reading: &r, Health: status.Live, Delay: p.cfg.Interval}
}

func (p *Poller) fail(err error) Outcome {
	p.failures++
	kind := source.Kind(err)

	if p.metrics != nil {
		p.metrics.IncFailure(kind)
	}

	snap := status.Snapshot{
		ConsecutiveFailures: p.failures,
		LastError:           err.Error(),
		LastErrorCode:       source.Code(err),
	}
	delay := p.cfg.Interval

	if p.failures >= p.cfg.HardThreshold {
		if p.sinks.Board.Load().Health != status.Down {
			p.reopen = true
			p.backoff = p.cfg.BackoffMin
		} else {
			p.backoff = min(p.backoff*2, p.cfg.BackoffMax)
		}
		if errors.Is(err, source.ErrIO) {
			p.reopen = true
		}
		snap.Health = status.Down
		snap.Stale = true
		delay = p.backoff
	} else {
		snap.Health = status.Degraded
		snap.Stale = p.failures >= p.cfg.SoftThreshold
	}

	p.log.Debug("acquisition failed",
		zap.String("kind", kind),
		zap.Int("consecutive_failures", p.failures),
		zap.Error(err),
	)
	p.setHealth(snap)

	return Outcome{Err: err, Health: snap.Health, Delay: delay}
}

func (p *Poller) reopenSource() error {
	if p.src != nil {
		if err := p.src.Close(); err != nil {
			p.log.Warn("source close failed", zap.Error(err))
		}
		p.src = nil
	}

	src, err := p.factory()
	if p.metrics != nil {
		p.metrics.IncReopen(err == nil)
	}
	if err != nil {
		p.log.Warn("source reopen failed", zap.Error(err))
		return err
	}

	p.log.Info("source opened")
	p.src = src
	p.reopen = false
	return nil
}

// setHealth publishes snap, carrying Since forward while the health
// value is unchanged.
func (p *Poller) setHealth(snap status.Snapshot) {
	prev := p.sinks.Board.Load()
	if prev.Health == snap.Health {
		snap.Since = prev.Since
	} else {
		snap.Since = p.now()
		p.logTransition(prev, snap)
	}
	p.sinks.Board.Store(snap)

	if p.metrics != nil {
		p.metrics.SetHealth(snap.Code())
	}
}

func (p *Poller) logTransition(prev, next status.Snapshot) {
	fields := []zap.Field{
		zap.Stringer("from", prev.Health),
		zap.Stringer("to", next.Health),
		zap.Int("consecutive_failures", next.ConsecutiveFailures),
	}
	if next.LastError != "" {
		fields = append(fields, zap.String("last_error", next.LastError))
	}

	switch next.Health {
	case status.Live:
		p.log.Info("source live", fields...)
	case status.Down:
		p.log.Error("source down", fields...)
	default:
		p.log.Warn("source degraded", fields...)
	}
}

// close releases the source. Idempotent.
func (p *Poller) close() {
	if p.src == nil {
		return
	}
	if err := p.src.Close(); err != nil {
		p.log.Warn("source close failed", zap.Error(err))
	}
	p.src = nil
}
