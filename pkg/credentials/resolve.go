package credentials

import "os"

// TokenEnvVar overrides every provider specific variable.
const TokenEnvVar = "CHATSTREAM_CLIENT_TOKEN"

// Source names where a resolved token came from.
type Source string

const (
	SourceNone  Source = ""
	SourceFlag  Source = "flag"
	SourceEnv   Source = "env"
	SourceStore Source = "credentials"
)

// ResolveToken picks the bearer token for provider. Precedence is the explicit
// flag value, then CHATSTREAM_CLIENT_TOKEN, then the provider's own variable
// (OPENAI_API_KEY for openai), then credentials.toml. A missing token is not an
// error: local OpenAI compatible servers usually accept anonymous requests.
func (m *Manager) ResolveToken(flagToken, provider string) (string, Source, error) {
	if flagToken != "" {
		return flagToken, SourceFlag, nil
	}
	if v := os.Getenv(TokenEnvVar); v != "" {
		return v, SourceEnv, nil
	}
	if name := EnvVarForProvider(provider); name != "" {
		if v := os.Getenv(name); v != "" {
			return v, SourceEnv, nil
		}
	}

	key, err := m.GetKey(provider)
	if err != nil {
		return "", SourceNone, err
	}
	if key == "" {
		return "", SourceNone, nil
	}
	return key, SourceStore, nil
}
