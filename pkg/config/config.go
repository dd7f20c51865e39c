package config

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml inside a resolved .chatstream/
// directory.
type Configer struct {
	path string
}

// NewConfiger resolves the .chatstream/ directory (override first, see
// dotdir.Manager.Target) and returns a Configer bound to its config.toml.
func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &Configer{}, nil
	}
	return &Configer{path: filepath.Join(dir, configFile)}, nil
}

// GetTarget is the config file path, or "" when no directory was resolved.
func (c *Configer) GetTarget() string {
	return c.path
}

// ValidConfigKeys returns every settable key in TOML section order.
func ValidConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

// IsValidConfigKey reports whether key is settable through SetConfigValue.
func IsValidConfigKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

// LoadConfig reads config.toml over NewDefaultConfig, so keys absent from the
// file keep their defaults. A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.path == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfigTOML(data)
}

// SaveConfig encodes cfg and atomically replaces config.toml.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.path == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue parses value into key, validates the whole config and saves
// it. Nothing is written when parsing or validation fails.
func (c *Configer) SetConfigValue(key, value string) error {
	k, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key (file over defaults).
func (c *Configer) GetConfigValue(key string) (string, error) {
	if !IsValidConfigKey(key) {
		return "", fmt.Errorf("unknown config key: %q", key)
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return ValueOf(cfg, key)
}

// ValueOf formats the field behind key. Unset optional values are "".
func ValueOf(cfg *Config, key string) (string, error) {
	k, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}
	return k.get(cfg), nil
}

// presets tweak NewDefaultConfig for a known endpoint.
var presets = map[string]func(*Config){
	"openai": func(*Config) {},
	"ollama": func(cfg *Config) {
		cfg.Client.Host = "http://localhost:11434"
		cfg.Client.Model = "llama3.2"
	},
}

// PresetConfig returns the named preset. Names are case-insensitive.
func PresetConfig(name string) (*Config, error) {
	apply, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
	cfg := NewDefaultConfig()
	apply(cfg)
	return cfg, nil
}

// ValidPresetNames returns the preset names, sorted.
func ValidPresetNames() []string {
	return slices.Sorted(maps.Keys(presets))
}

// ParseConfigTOML decodes data over NewDefaultConfig. A version other than
// CurrentV is rejected.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
