package credentials

import "time"

// Credentials is the on-disk shape of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential is the bearer token stored for one provider.
type ProviderCredential struct {
	APIKey    string    `toml:"api_key"`
	UpdatedAt time.Time `toml:"updated_at,omitempty"`
}
