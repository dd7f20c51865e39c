package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable viper binds.
const EnvPrefix = "CHATSTREAM"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via FlagSet.Bind)
//  2. Environment variables (CHATSTREAM_CLIENT_MODEL, CHATSTREAM_CLIENT_HOST, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATSTREAM_CLIENT_MODEL, CHATSTREAM_EVENT_STREAM_TOPIC, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.host", d.Client.Host)
	v.SetDefault("client.model", d.Client.Model)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.provider", d.Client.Provider)

	// Log
	v.SetDefault("log.json", d.Log.JSON)

	// Telemetry
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)

	// Event stream
	v.SetDefault("event_stream.provider", d.EventStream.Provider)
	v.SetDefault("event_stream.brokers", d.EventStream.Brokers)
	v.SetDefault("event_stream.topic", d.EventStream.Topic)

	// Batch
	v.SetDefault("batch.workers", d.Batch.Workers)
}

// FromViper builds a Config from the resolved viper values, so flag, env and
// file layers are all reflected.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Client: ClientConfig{
			Host:     v.GetString("client.host"),
			Model:    v.GetString("client.model"),
			Timeout:  v.GetString("client.timeout"),
			Provider: v.GetString("client.provider"),
		},
		Log: LogConfig{
			JSON: v.GetBool("log.json"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("event_stream.provider"),
			Brokers:  v.GetString("event_stream.brokers"),
			Topic:    v.GetString("event_stream.topic"),
		},
		Batch: BatchConfig{
			Workers: v.GetUint("batch.workers"),
		},
	}
}

// LoadForCommand resolves the effective Config for cmd. It reads --config-dir,
// binds the registry flags named by keys plus --log-json, and validates the
// result.
func LoadForCommand(cmd *cobra.Command, fs FlagSet, keys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	fs.Bind(v, cmd, keys...)
	if f := cmd.Flags().Lookup("log-json"); f != nil && f.Changed {
		_ = v.BindPFlag("log.json", f)
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
