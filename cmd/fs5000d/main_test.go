// cmd/fs5000d/main_test.go
package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/writer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fs5000.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_ValidatesThenNormalizes(t *testing.T) {
	path := writeConfig(t, `
source:
  use_mock: true
log:
  level: DEBUG
mirror:
  modbus:
    endpoint: 127.0.0.1:1502
    status_slot: 1
    device_name: FS5000-ROOFTOP-NORTH
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "FS5000-ROOFTOP-N", cfg.Mirror.Modbus.DeviceName)
}

func TestLoadConfig_RejectsNonASCIIName(t *testing.T) {
	// Validate must see the raw name; truncation happens afterwards
	path := writeConfig(t, `
source:
  use_mock: true
mirror:
  modbus:
    endpoint: 127.0.0.1:1502
    status_slot: 1
    device_name: "FS5000-ROOFTOP-NORTH-é"
`)
	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

type pingWriter struct {
	name string
	err  error
}

func (w *pingWriter) Name() string                                        { return w.name }
func (w *pingWriter) WriteReading(context.Context, reading.Reading) error { return nil }
func (w *pingWriter) Ping(context.Context) error                          { return w.err }

type plainWriter struct{}

func (plainWriter) Name() string                                        { return "plain" }
func (plainWriter) WriteReading(context.Context, reading.Reading) error { return nil }

func TestCheckMirrors_WarnsOnlyForUnreachable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	checkMirrors(context.Background(), []writer.Writer{
		&pingWriter{name: "up"},
		&pingWriter{name: "down", err: errors.New("connection refused")},
		plainWriter{},
	}, zap.New(core))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "down", entries[0].ContextMap()["sink"])
}
