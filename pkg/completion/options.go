package completion

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/llm/provider"
)

// Option configures a Client created with NewClient.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. The default has no timeout;
// deadlines come from the context passed to Complete.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProvider overrides the wire format. Defaults to OpenAI.
func WithProvider(p provider.Provider) Option {
	return func(c *Client) {
		if p != nil {
			c.provider = p
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer used for completion spans. Defaults to no-op.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithPublisher publishes an event for every finished call.
func WithPublisher(p eventstream.Publisher) Option {
	return func(c *Client) {
		c.publisher = p
	}
}

// WithDefaultHost sets the host used by requests that do not name one.
func WithDefaultHost(host string) Option {
	return func(c *Client) {
		if host != "" {
			c.defaultHost = host
		}
	}
}

// WithMaxLineSize bounds a single SSE line. Longer lines drop their event.
func WithMaxLineSize(n int) Option {
	return func(c *Client) {
		c.maxLineSize = n
	}
}

// TextFunc receives the full answer so far after each content fragment.
type TextFunc func(text string, c *Canceler)

// ErrorFunc receives every non-cancellation failure, once, before Complete
// returns it.
type ErrorFunc func(err error)

// CallOption configures a single Complete call.
type CallOption func(*callConfig)

type callConfig struct {
	onText   TextFunc
	onError  ErrorFunc
	canceler *Canceler
	result   *Result
}

// OnText registers the progress callback.
func OnText(fn TextFunc) CallOption {
	return func(cc *callConfig) {
		cc.onText = fn
	}
}

// OnError registers the error callback.
func OnError(fn ErrorFunc) CallOption {
	return func(cc *callConfig) {
		cc.onError = fn
	}
}

// WithCanceler supplies the cancellation handle instead of letting the call
// create its own.
func WithCanceler(c *Canceler) CallOption {
	return func(cc *callConfig) {
		cc.canceler = c
	}
}

// WithResult fills r with call details once Complete returns.
func WithResult(r *Result) CallOption {
	return func(cc *callConfig) {
		cc.result = r
	}
}

// Result describes a finished call.
type Result struct {
	CallID     string
	State      State
	Answer     string
	Fragments  int
	Model      string
	StopReason string
	Usage      *llm.Usage
	Duration   time.Duration

	// DiscardedEvents counts events dropped for oversized lines.
	DiscardedEvents int
}
