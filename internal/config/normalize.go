// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Source.Device = strings.TrimSpace(cfg.Source.Device)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK NORMALIZATION (OPT-IN)
	// ------------------------------------------------------------

	m := &cfg.Mirror.Modbus
	if m.StatusSlot == nil {
		return
	}

	// Normalize device_name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	if len(m.DeviceName) > 16 {
		m.DeviceName = m.DeviceName[:16]
	}
}
