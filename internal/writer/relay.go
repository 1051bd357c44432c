// internal/writer/relay.go
package writer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/broadcast"
)

// Stream opens hub subscriptions.
type Stream interface {
	OpenStream() (*broadcast.Subscriber, error)
}

// SinkMetrics is what sinks report. Optional.
type SinkMetrics interface {
	IncSinkWrite(sink string, ok bool)
}

// Relay feeds one Writer from the hub. A sink is just another
// subscriber: if it falls behind it is evicted like any other and the
// relay subscribes again after a pause, accepting the gap.
type Relay struct {
	stream  Stream
	w       Writer
	log     *zap.Logger
	metrics SinkMetrics

	resubscribeDelay time.Duration
}

// NewRelay creates a relay. metrics may be nil.
func NewRelay(stream Stream, w Writer, log *zap.Logger, metrics SinkMetrics) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		stream:           stream,
		w:                w,
		log:              log.With(zap.String("sink", w.Name())),
		metrics:          metrics,
		resubscribeDelay: time.Second,
	}
}

// Run delivers readings until ctx is done or the hub closes.
// Write errors are logged and counted; they never stop the relay.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub, err := r.stream.OpenStream()
		if err != nil {
			if !errors.Is(err, broadcast.ErrClosed) {
				r.log.Error("sink subscribe failed", zap.Error(err))
			}
			return
		}

		err = r.drain(ctx, sub)
		sub.Close()

		switch {
		case errors.Is(err, broadcast.ErrEvicted):
			r.log.Warn("sink evicted, resubscribing", zap.Duration("after", r.resubscribeDelay))
		default:
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.resubscribeDelay):
		}
	}
}

func (r *Relay) drain(ctx context.Context, sub *broadcast.Subscriber) error {
	for {
		rd, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		err = r.w.WriteReading(ctx, rd)
		if r.metrics != nil {
			r.metrics.IncSinkWrite(r.w.Name(), err == nil)
		}
		if err != nil {
			r.log.Warn("sink write failed", zap.Error(err))
		}
	}
}
