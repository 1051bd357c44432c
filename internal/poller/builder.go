// internal/poller/builder.go
package poller

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/source"
)

// Build opens the initial source and constructs a Poller around it.
// The factory is called once here so an unusable device or a
// misconfigured simulator fails at startup; afterwards the poller
// calls it only to reopen.
func Build(cfg Config, factory source.Factory, sinks Sinks, log *zap.Logger, metrics Metrics) (*Poller, error) {
	src, err := factory()
	if err != nil {
		return nil, fmt.Errorf("poller: open source: %w", err)
	}

	p, err := New(cfg, src, factory, sinks, log, metrics)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return p, nil
}
