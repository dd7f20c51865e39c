package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			d, err := time.ParseDuration(fl.Field().String())
			return err == nil && d > 0
		})
	})
	return validate
}

// Validate checks field constraints declared on the config struct tags.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}

	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
}

// TimeoutDuration parses Client.Timeout. An empty value means no timeout.
func (c *ClientConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid value for client.timeout: %w", err)
	}
	return d, nil
}

// CredentialProvider is the credentials.toml / env var provider to resolve
// the bearer token for: Provider when set, "openrouter" for openrouter.ai
// hosts, "openai" otherwise.
func (c *ClientConfig) CredentialProvider() string {
	if c.Provider != "" {
		return c.Provider
	}
	if u, err := url.Parse(c.Host); err == nil {
		h := strings.ToLower(u.Hostname())
		if h == "openrouter.ai" || strings.HasSuffix(h, ".openrouter.ai") {
			return "openrouter"
		}
	}
	return "openai"
}

// BrokerList splits the comma separated broker list, dropping blanks.
func (e *EventStreamConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
