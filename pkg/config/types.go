package config

import (
	"fmt"
	"slices"
	"strconv"
)

// Config represents the persistent chatstream configuration stored as
// config.toml in the .chatstream/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Log         LogConfig         `toml:"log"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	EventStream EventStreamConfig `toml:"event_stream"`
	Batch       BatchConfig       `toml:"batch"`
}

// ClientConfig holds settings for the completion client.
// Host is a full URL (scheme + host + optional port).
type ClientConfig struct {
	Host    string `toml:"host,omitempty"    validate:"required,url"`
	Model   string `toml:"model,omitempty"   validate:"required"`
	Timeout string `toml:"timeout,omitempty" validate:"omitempty,duration"`

	// Provider names the credential to send. Empty infers it from Host.
	Provider string `toml:"provider,omitempty" validate:"omitempty,oneof=openai openrouter"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	JSON bool `toml:"json,omitempty"`
}

// TelemetryConfig holds OpenTelemetry exporter settings. An empty endpoint
// disables tracing.
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint,omitempty" validate:"omitempty,url"`
}

// EventStreamConfig selects where completion events are published.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty" validate:"omitempty,oneof=none kafka"`
	Brokers  string `toml:"brokers,omitempty"  validate:"required_if=Provider kafka"`
	Topic    string `toml:"topic,omitempty"    validate:"required_if=Provider kafka"`
}

// BatchConfig holds settings for "chatstream batch".
type BatchConfig struct {
	Workers uint `toml:"workers,omitempty" validate:"omitempty,min=1,max=64"`
}

// configKey binds a user-facing dotted key to a field of *Config.
type configKey struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

func stringKey(name string, field func(c *Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set:  func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys lists every settable key in TOML section order.
var configKeys = []configKey{
	stringKey("client.host", func(c *Config) *string { return &c.Client.Host }),
	stringKey("client.model", func(c *Config) *string { return &c.Client.Model }),
	stringKey("client.timeout", func(c *Config) *string { return &c.Client.Timeout }),
	stringKey("client.provider", func(c *Config) *string { return &c.Client.Provider }),
	{
		name: "log.json",
		get:  func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
	stringKey("telemetry.otlp_endpoint", func(c *Config) *string { return &c.Telemetry.OTLPEndpoint }),
	stringKey("event_stream.provider", func(c *Config) *string { return &c.EventStream.Provider }),
	stringKey("event_stream.brokers", func(c *Config) *string { return &c.EventStream.Brokers }),
	stringKey("event_stream.topic", func(c *Config) *string { return &c.EventStream.Topic }),
	{
		name: "batch.workers",
		get: func(c *Config) string {
			if c.Batch.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Batch.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 0)
			if err != nil {
				return fmt.Errorf("invalid value for batch.workers: %w", err)
			}
			c.Batch.Workers = uint(n)
			return nil
		},
	},
}

func lookupKey(name string) (configKey, bool) {
	i := slices.IndexFunc(configKeys, func(k configKey) bool { return k.name == name })
	if i < 0 {
		return configKey{}, false
	}
	return configKeys[i], true
}
