// internal/source/factory.go
package source

import (
	"go.uber.org/zap"
)

// Config selects and configures the source variant.
type Config struct {
	UseMock  bool
	Hardware HardwareConfig
	Sim      SimConfig
}

// NewFactory returns the factory for the configured variant.
// The simulated variant is validated here so misconfiguration fails at
// startup; the hardware variant fails on the first (startup) call.
func NewFactory(cfg Config, log *zap.Logger) (Factory, error) {
	if cfg.UseMock {
		sim, err := NewSimulated(cfg.Sim)
		if err != nil {
			return nil, err
		}
		log.Warn("using simulated FS5000 source",
			zap.Int64("seed", cfg.Sim.Seed),
			zap.Int("fail_every", cfg.Sim.FailEvery),
		)
		return func() (Source, error) { return sim, nil }, nil
	}

	hw := cfg.Hardware
	return func() (Source, error) {
		h, err := OpenHardware(hw, log)
		if err != nil {
			return nil, err
		}
		return h, nil
	}, nil
}
