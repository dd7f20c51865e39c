// Package logger builds the *slog.Logger used across chatstream.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// DefaultRedactedKeys never reach a log sink in clear text.
var DefaultRedactedKeys = []string{"token", "authorization", "api_key"}

const redacted = "[redacted]"

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	writers []io.Writer
	source  bool
	redact  map[string]struct{}
}

// New creates a *slog.Logger. Without options it writes leveled text to
// os.Stderr at Info level with DefaultRedactedKeys masked.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, redact: map[string]struct{}{}}
	WithRedact(DefaultRedactedKeys...)(c)
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer = os.Stderr
	switch len(c.writers) {
	case 0:
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	hopts := &slog.HandlerOptions{
		Level:       c.level,
		AddSource:   c.source,
		ReplaceAttr: c.replaceAttr,
	}

	switch {
	case c.json:
		return slog.New(slog.NewJSONHandler(w, hopts))
	case c.pretty:
		h := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
		// charmlog has no ReplaceAttr hook.
		return slog.New(&redactHandler{next: h, keys: c.redact})
	default:
		return slog.New(slog.NewTextHandler(w, hopts))
	}
}

func (c *config) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := c.redact[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
