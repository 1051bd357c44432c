// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run ticks until ctx is cancelled. The first tick is immediate; each
// following tick waits for the previous Outcome's Delay, so ticks never
// overlap. On return the source is closed and the hub is closed, which
// ends every open stream.
func (p *Poller) Run(ctx context.Context) {
	defer func() {
		p.close()
		p.sinks.Hub.Close()
		p.log.Info("acquisition stopped")
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		out := p.PollOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		timer.Reset(out.Delay)
	}
}
