// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// SOURCE
	// ------------------------------------------------------------

	s := cfg.Source
	if s.UseMock {
		if s.Mock.PeriodMs <= 0 {
			return fmt.Errorf("source.mock.period_ms must be > 0 (got %d)", s.Mock.PeriodMs)
		}
		if s.Mock.FailEvery < 0 {
			return fmt.Errorf("source.mock.fail_every must be >= 0 (got %d)", s.Mock.FailEvery)
		}
		if s.Mock.MinRate < 0 || s.Mock.MinRate >= s.Mock.MaxRate {
			return fmt.Errorf("source.mock rate bounds [%g, %g] invalid", s.Mock.MinRate, s.Mock.MaxRate)
		}
	} else {
		if s.BaudRate <= 0 {
			return fmt.Errorf("source.baud_rate must be > 0 (got %d)", s.BaudRate)
		}
		if s.ReadTimeoutMs <= 0 {
			return fmt.Errorf("source.read_timeout_ms must be > 0 (got %d)", s.ReadTimeoutMs)
		}
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	p := cfg.Poll
	if p.IntervalMs <= 0 {
		return fmt.Errorf("poll.interval_ms must be > 0 (got %d)", p.IntervalMs)
	}
	if p.SoftThreshold < 1 {
		return fmt.Errorf("poll.soft_threshold must be >= 1 (got %d)", p.SoftThreshold)
	}
	if p.HardThreshold < p.SoftThreshold {
		return fmt.Errorf(
			"poll.hard_threshold (%d) must be >= poll.soft_threshold (%d)",
			p.HardThreshold,
			p.SoftThreshold,
		)
	}
	if p.BackoffMinMs <= 0 {
		return fmt.Errorf("poll.backoff_min_ms must be > 0 (got %d)", p.BackoffMinMs)
	}
	if p.BackoffMaxMs < p.BackoffMinMs {
		return fmt.Errorf(
			"poll.backoff_max_ms (%d) must be >= poll.backoff_min_ms (%d)",
			p.BackoffMaxMs,
			p.BackoffMinMs,
		)
	}
	if p.ShutdownGraceMs < 0 {
		return fmt.Errorf("poll.shutdown_grace_ms must be >= 0 (got %d)", p.ShutdownGraceMs)
	}

	// ------------------------------------------------------------
	// FAN-OUT
	// ------------------------------------------------------------

	if cfg.Hub.QueueCapacity < 1 {
		return fmt.Errorf("hub.queue_capacity must be >= 1 (got %d)", cfg.Hub.QueueCapacity)
	}
	if cfg.History.Capacity < 1 {
		return fmt.Errorf("history.capacity must be >= 1 (got %d)", cfg.History.Capacity)
	}
	if cfg.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK VALIDATION (OPT-IN)
	// ------------------------------------------------------------

	m := cfg.Mirror.Modbus

	// device_name sanity (ASCII only)
	for i := 0; i < len(m.DeviceName); i++ {
		if m.DeviceName[i] > 0x7F {
			return errors.New("mirror.modbus.device_name must contain ASCII characters only")
		}
	}

	if m.StatusSlot != nil && !m.Enabled() {
		return errors.New("mirror.modbus.status_slot is set but mirror.modbus.endpoint is empty")
	}

	// ------------------------------------------------------------
	// REGISTER GEOMETRY VALIDATION
	// ------------------------------------------------------------

	if m.Enabled() {
		if m.TimeoutMs <= 0 {
			return fmt.Errorf("mirror.modbus.timeout_ms must be > 0 (got %d)", m.TimeoutMs)
		}

		readStart := int(m.ReadingBase)
		readEnd := readStart + readingBlockRegisters - 1
		if readEnd > math.MaxUint16 {
			return fmt.Errorf("mirror.modbus.reading_base %d: block does not fit in the register space", m.ReadingBase)
		}

		if m.StatusSlot != nil {
			statusStart := int(*m.StatusSlot) * statusBlockRegisters
			statusEnd := statusStart + statusBlockRegisters - 1
			if statusEnd > math.MaxUint16 {
				return fmt.Errorf("mirror.modbus.status_slot %d: block does not fit in the register space", *m.StatusSlot)
			}

			// overlap check (inclusive)
			if !(readEnd < statusStart || readStart > statusEnd) {
				return fmt.Errorf(
					"register overlap: reading block %d-%d overlaps status block %d-%d",
					readStart,
					readEnd,
					statusStart,
					statusEnd,
				)
			}
		}
	}

	if cfg.Mirror.Redis.Enabled() && cfg.Mirror.Redis.DB < 0 {
		return fmt.Errorf("mirror.redis.db must be >= 0 (got %d)", cfg.Mirror.Redis.DB)
	}

	return nil
}

// Register geometry of the mirror blocks.
// readingBlockRegisters is kept in step with writer.ReadingBlockSize.
const (
	readingBlockRegisters = 16
	statusBlockRegisters  = status.SlotsPerDevice
)
