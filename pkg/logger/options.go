package logger

import (
	"io"
	"log/slog"
	"strings"
)

type Option func(*config)

func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log handler for terminal output.
// WithJSON takes precedence when both are set.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter sets the destination. Several writers are combined with
// io.MultiWriter. Defaults to os.Stderr so log lines never interleave with a
// streamed answer on stdout.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) { c.writers = w }
}

func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithRedact adds attribute keys whose values are replaced with "[redacted]".
// Matching is case-insensitive and applies inside groups.
func WithRedact(keys ...string) Option {
	return func(c *config) {
		for _, k := range keys {
			c.redact[strings.ToLower(k)] = struct{}{}
		}
	}
}
