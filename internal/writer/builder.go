// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/scriptstreamvrpc/api-fs500-websocket/internal/config"
	wmodbus "github.com/scriptstreamvrpc/api-fs500-websocket/internal/writer/modbus"
	wredis "github.com/scriptstreamvrpc/api-fs500-websocket/internal/writer/redis"
)

// BuildPlan converts the modbus mirror config into a register Plan.
// Assumes config has already passed validation and normalization.
func BuildPlan(m cfg.ModbusMirrorConfig) (Plan, error) {
	if m.Endpoint == "" {
		return Plan{}, errors.New("writer: mirror.modbus.endpoint required")
	}

	plan := Plan{
		Endpoint:    m.Endpoint,
		UnitID:      m.UnitID,
		ReadingBase: m.ReadingBase,
	}
	if m.StatusSlot != nil {
		plan.Status = &StatusPlan{
			BaseSlot:   *m.StatusSlot,
			DeviceName: m.DeviceName,
		}
	}
	return plan, nil
}

// Sinks is everything the mirror config enabled.
type Sinks struct {
	Writers []Writer
	Status  StatusWriter // nil when the status block is disabled
	Close   func() error
}

// Build creates the enabled sinks. Nothing is dialled here.
func Build(mc cfg.MirrorConfig) (Sinks, error) {
	var out Sinks
	var closers []func() error

	if mc.Modbus.Enabled() {
		plan, err := BuildPlan(mc.Modbus)
		if err != nil {
			return Sinks{}, err
		}

		cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: plan.Endpoint,
			Timeout:  time.Duration(mc.Modbus.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return Sinks{}, err
		}
		closers = append(closers, cli.Close)

		out.Writers = append(out.Writers, NewRegisterWriter(plan, cli))
		if sw, enabled := NewDeviceStatusWriter(plan, cli); enabled {
			out.Status = sw
		}
	}

	if mc.Redis.Enabled() {
		pub := wredis.New(wredis.Config{
			Addr:     mc.Redis.Addr,
			Password: mc.Redis.Password,
			DB:       mc.Redis.DB,
			Prefix:   mc.Redis.Prefix,
		})
		closers = append(closers, pub.Close)
		out.Writers = append(out.Writers, pub)
	}

	out.Close = func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}
	return out, nil
}
