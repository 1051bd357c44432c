// internal/config/config.go
package config

type Config struct {
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Poll    PollConfig    `yaml:"poll" mapstructure:"poll"`
	Hub     HubConfig     `yaml:"hub" mapstructure:"hub"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Mirror  MirrorConfig  `yaml:"mirror" mapstructure:"mirror"`
}

// ---- SOURCE ----

type SourceConfig struct {
	UseMock bool `yaml:"use_mock" mapstructure:"use_mock"`

	// Hardware. Empty device means auto-detect.
	Device        string `yaml:"device" mapstructure:"device"`
	BaudRate      int    `yaml:"baud_rate" mapstructure:"baud_rate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms" mapstructure:"read_timeout_ms"`
	SetClock      bool   `yaml:"set_clock" mapstructure:"set_clock"`

	Mock MockConfig `yaml:"mock" mapstructure:"mock"`
}

type MockConfig struct {
	Seed      int64   `yaml:"seed" mapstructure:"seed"`
	PeriodMs  int     `yaml:"period_ms" mapstructure:"period_ms"`
	FailEvery int     `yaml:"fail_every" mapstructure:"fail_every"`
	MinRate   float64 `yaml:"min_rate" mapstructure:"min_rate"`
	MaxRate   float64 `yaml:"max_rate" mapstructure:"max_rate"`
	AlarmRate float64 `yaml:"alarm_rate" mapstructure:"alarm_rate"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs      int `yaml:"interval_ms" mapstructure:"interval_ms"`
	SoftThreshold   int `yaml:"soft_threshold" mapstructure:"soft_threshold"`
	HardThreshold   int `yaml:"hard_threshold" mapstructure:"hard_threshold"`
	BackoffMinMs    int `yaml:"backoff_min_ms" mapstructure:"backoff_min_ms"`
	BackoffMaxMs    int `yaml:"backoff_max_ms" mapstructure:"backoff_max_ms"`
	ShutdownGraceMs int `yaml:"shutdown_grace_ms" mapstructure:"shutdown_grace_ms"`
}

// ---- FAN-OUT ----

type HubConfig struct {
	QueueCapacity int `yaml:"queue_capacity" mapstructure:"queue_capacity"`
}

type HistoryConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// ---- SURFACE ----

type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ---- MIRRORS (optional downstream sinks) ----

type MirrorConfig struct {
	Modbus ModbusMirrorConfig `yaml:"modbus" mapstructure:"modbus"`
	Redis  RedisMirrorConfig  `yaml:"redis" mapstructure:"redis"`
}

// ModbusMirrorConfig is enabled by a non-empty endpoint.
type ModbusMirrorConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	UnitID      uint8  `yaml:"unit_id" mapstructure:"unit_id"`
	ReadingBase uint16 `yaml:"reading_base" mapstructure:"reading_base"`
	TimeoutMs   int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot" mapstructure:"status_slot"`
	DeviceName string  `yaml:"device_name" mapstructure:"device_name"`
}

func (m ModbusMirrorConfig) Enabled() bool { return m.Endpoint != "" }

// RedisMirrorConfig is enabled by a non-empty addr.
type RedisMirrorConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

func (r RedisMirrorConfig) Enabled() bool { return r.Addr != "" }
