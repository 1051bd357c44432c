// internal/config/load.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: defaults, the optional
// YAML file at path, then environment variables (a .env file in the
// working directory is loaded into the environment first).
// The result is neither validated nor normalized.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		m, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(m); err != nil {
			return nil, fmt.Errorf("config: merge %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// readYAML decodes strictly into Config first so unknown keys are
// reported, then returns the generic map for layering.
func readYAML(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var strict Config
	if err := dec.Decode(&strict); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	m := map[string]any{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return m, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.use_mock", false)
	v.SetDefault("source.device", "")
	v.SetDefault("source.baud_rate", 115200)
	v.SetDefault("source.read_timeout_ms", 2000)
	v.SetDefault("source.set_clock", false)

	v.SetDefault("source.mock.seed", 1)
	v.SetDefault("source.mock.period_ms", 1000)
	v.SetDefault("source.mock.fail_every", 0)
	v.SetDefault("source.mock.min_rate", 0.05)
	v.SetDefault("source.mock.max_rate", 0.50)
	v.SetDefault("source.mock.alarm_rate", 0.40)

	v.SetDefault("poll.interval_ms", 1000)
	v.SetDefault("poll.soft_threshold", 3)
	v.SetDefault("poll.hard_threshold", 5)
	v.SetDefault("poll.backoff_min_ms", 1000)
	v.SetDefault("poll.backoff_max_ms", 30000)
	v.SetDefault("poll.shutdown_grace_ms", 3000)

	v.SetDefault("hub.queue_capacity", 64)
	v.SetDefault("history.capacity", 3600)
	v.SetDefault("http.addr", ":8000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mirror.modbus.unit_id", 1)
	v.SetDefault("mirror.modbus.timeout_ms", 1000)
	v.SetDefault("mirror.redis.prefix", "fs5000:")
}

// envNames maps keys whose variable names do not follow the
// dot-to-underscore rule. Earlier names win.
var envNames = map[string][]string{
	"source.use_mock":        {"FS5000_USE_MOCK", "USE_MOCK"},
	"source.device":          {"FS5000_DEVICE"},
	"source.baud_rate":       {"FS5000_BAUD_RATE"},
	"source.read_timeout_ms": {"FS5000_READ_TIMEOUT_MS"},
	"source.set_clock":       {"FS5000_SET_CLOCK"},

	"source.mock.seed":       {"FS5000_MOCK_SEED"},
	"source.mock.period_ms":  {"FS5000_MOCK_PERIOD_MS"},
	"source.mock.fail_every": {"FS5000_MOCK_FAIL_EVERY"},
	"source.mock.min_rate":   {"FS5000_MOCK_MIN_RATE"},
	"source.mock.max_rate":   {"FS5000_MOCK_MAX_RATE"},
	"source.mock.alarm_rate": {"FS5000_MOCK_ALARM_RATE"},
}

// bindEnv binds every key so flat variables reach nested fields.
func bindEnv(v *viper.Viper) error {
	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	for _, key := range []string{
		"poll.interval_ms", "poll.soft_threshold", "poll.hard_threshold",
		"poll.backoff_min_ms", "poll.backoff_max_ms", "poll.shutdown_grace_ms",
		"hub.queue_capacity", "history.capacity", "http.addr",
		"log.level", "log.format",
		"mirror.modbus.endpoint", "mirror.modbus.unit_id", "mirror.modbus.reading_base",
		"mirror.modbus.timeout_ms", "mirror.modbus.status_slot", "mirror.modbus.device_name",
		"mirror.redis.addr", "mirror.redis.password", "mirror.redis.db", "mirror.redis.prefix",
	} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	return nil
}
