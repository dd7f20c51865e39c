// Package credentials stores bearer tokens for OpenAI compatible providers in
// credentials.toml and resolves the token a completion call should use.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// providerEnvVars maps supported providers to the variable that overrides a
// stored key.
var providerEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// Manager reads and writes credentials.toml in a .chatstream/ directory.
type Manager struct {
	path string
	now  func() time.Time
}

// NewManager resolves the .chatstream/ directory (override first, then the
// usual dotdir lookup) and returns a Manager for its credentials.toml.
func NewManager(override string) (*Manager, error) {
	target, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	return &Manager{path: filepath.Join(target, credentialsFile), now: time.Now}, nil
}

// Load returns empty Credentials when the file does not exist yet.
func (m *Manager) Load() (*Credentials, error) {
	creds := &Credentials{Version: currentVersion}

	data, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := toml.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
		if creds.Version != currentVersion {
			return nil, fmt.Errorf("unsupported credentials version %d (expected %d)", creds.Version, currentVersion)
		}
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}
	return creds, nil
}

// Save replaces credentials.toml atomically. The file is only ever readable
// by its owner.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".credentials-*.toml")
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

func (m *Manager) update(fn func(*Credentials)) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}
	fn(creds)
	return m.Save(creds)
}

// SetKey stores key for provider, stamping the time it was written.
func (m *Manager) SetKey(provider, key string) error {
	return m.update(func(c *Credentials) {
		c.Providers[normalize(provider)] = ProviderCredential{APIKey: key, UpdatedAt: m.now().UTC()}
	})
}

// GetKey returns "" when nothing is stored for provider.
func (m *Manager) GetKey(provider string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	return creds.Providers[normalize(provider)].APIKey, nil
}

// RemoveKey is a no-op for providers without a stored key.
func (m *Manager) RemoveKey(provider string) error {
	return m.update(func(c *Credentials) {
		delete(c.Providers, normalize(provider))
	})
}

// ListProviders returns the providers with a stored key, sorted.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(creds.Providers)), nil
}

// GetTarget returns the path of credentials.toml.
func (m *Manager) GetTarget() string {
	return m.path
}

// EnvVarForProvider returns "" for unknown providers.
func EnvVarForProvider(provider string) string {
	return providerEnvVars[normalize(provider)]
}

func SupportedProviders() []string {
	return slices.Sorted(maps.Keys(providerEnvVars))
}

func IsSupportedProvider(provider string) bool {
	_, ok := providerEnvVars[provider]
	return ok
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
