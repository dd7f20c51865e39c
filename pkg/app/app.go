// Package app assembles the completion client and its supporting services
// (logger, tracer, event publisher) from a resolved config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/papercomputeco/chatstream/pkg/completion"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatstream/pkg/eventstream/nop"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/telemetry"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

const serviceName = "chatstream"

// Options is the runtime configuration for New.
type Options struct {
	// Config is the fully resolved configuration. Required.
	Config *config.Config

	// Debug enables debug level logging.
	Debug bool

	// LogWriter receives human readable logs. Defaults to os.Stderr.
	LogWriter io.Writer

	// LogFile, when set, additionally receives JSON logs.
	LogFile string

	// HTTPClient overrides the transport used for completions.
	HTTPClient *http.Client

	// Publisher overrides the publisher selected by Config.EventStream.
	Publisher eventstream.Publisher
}

// App owns the completion client and everything that must be closed with it.
type App struct {
	Client *completion.Client
	Logger *slog.Logger

	closers []func(context.Context) error
}

// New builds an App. Callers must Close it.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app requires a config")
	}
	cfg := opts.Config

	a := &App{}

	log, logCloser, err := newLogger(opts)
	if err != nil {
		return nil, err
	}
	a.Logger = log
	if logCloser != nil {
		a.closers = append(a.closers, func(context.Context) error { return logCloser.Close() })
	}

	tracer, shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: utils.Version,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	pub := opts.Publisher
	if pub == nil {
		pub, err = NewPublisher(cfg.EventStream)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("creating event publisher: %w", err)
		}
	}
	a.closers = append(a.closers, func(context.Context) error { return pub.Close() })

	clientOpts := []completion.Option{
		completion.WithLogger(log),
		completion.WithTracer(tracer),
		completion.WithPublisher(pub),
		completion.WithDefaultHost(cfg.Client.Host),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, completion.WithHTTPClient(opts.HTTPClient))
	}
	a.Client = completion.NewClient(clientOpts...)

	log.Debug("completion client ready",
		"host", cfg.Client.Host,
		"model", cfg.Client.Model,
		"event_stream", cfg.EventStream.Provider,
		"tracing", cfg.Telemetry.OTLPEndpoint != "",
	)

	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewPublisher selects the completion event publisher.
func NewPublisher(cfg config.EventStreamConfig) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.BrokerList(),
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown event stream provider: %q", cfg.Provider)
	}
}

// newLogger writes pretty logs to LogWriter (or JSON when log.json is set),
// fanning out to a JSON log file when one is configured.
func newLogger(opts Options) (*slog.Logger, io.Closer, error) {
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}

	console := logger.New(
		logger.WithDebug(opts.Debug),
		logger.WithJSON(opts.Config.Log.JSON),
		logger.WithPretty(!opts.Config.Log.JSON),
		logger.WithWriter(w),
	)
	if opts.LogFile == "" {
		return console, nil, nil
	}

	f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(opts.Debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), f, nil
}
