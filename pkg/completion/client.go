// Package completion runs streaming chat completion calls.
//
// A call reads the response body through a stream.Reader, decodes it with an
// sse.Parser and folds every content delta into the answer, reporting the
// growing text to an OnText callback:
//
//	HTTP body ─▶ stream.Reader ─▶ sse.Parser ─▶ provider chunk ─▶ answer
//	                  ▲                                              │
//	                  └──────────── Canceler.Cancel() ◀── OnText ◀───┘
package completion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/llm/provider"
	"github.com/papercomputeco/chatstream/pkg/llm/provider/openai"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/stream"
	"github.com/papercomputeco/chatstream/pkg/telemetry"
)

// SpanName is the name of the span wrapping each call.
const SpanName = "chatstream.completion"

// maxErrorBody caps how much of a failed response is read.
const maxErrorBody = 64 * 1024

// Client issues streaming completion calls. It is safe for concurrent use;
// calls share no mutable state.
type Client struct {
	httpClient  *http.Client
	provider    provider.Provider
	logger      *slog.Logger
	tracer      trace.Tracer
	publisher   eventstream.Publisher
	defaultHost string
	maxLineSize int
}

// NewClient creates a Client targeting the OpenAI API unless options say
// otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		provider:    openai.New(),
		logger:      logger.Nop(),
		tracer:      telemetry.Noop(),
		defaultHost: openai.DefaultHost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends req and streams the answer. It returns the full answer on
// normal completion. On failure it returns the answer accumulated so far
// together with the error, after reporting the error to OnError. When the
// Canceler fires, Complete returns the partial answer and a nil error.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest, opts ...CallOption) (string, error) {
	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.canceler == nil {
		cfg.canceler = NewCanceler()
	}

	cl := &call{
		client:  c,
		req:     req,
		cfg:     cfg,
		id:      "call_" + uuid.NewString(),
		started: time.Now(),
		host:    c.defaultHost,
	}
	if req != nil && req.Host != "" {
		cl.host = req.Host
	}
	cl.log = c.logger.With("call_id", cl.id, "provider", c.provider.Name())

	return cl.run(ctx)
}

// call holds the state of one Complete invocation.
type call struct {
	client *Client
	req    *llm.ChatRequest
	cfg    callConfig
	log    *slog.Logger
	span   trace.Span

	id      string
	host    string
	started time.Time
	state   State
	status  int

	answer     strings.Builder
	fragments  int
	model      string
	stopReason string
	usage      *llm.Usage
	discarded  int
}

func (cl *call) run(ctx context.Context) (string, error) {
	c := cl.client
	parent := ctx

	ctx, cl.span = c.tracer.Start(ctx, SpanName, trace.WithAttributes(
		attribute.String("chatstream.call_id", cl.id),
		attribute.String("chatstream.provider", c.provider.Name()),
		attribute.String("chatstream.host", cl.host),
	))
	defer cl.span.End()

	if err := cl.req.Validate(); err != nil {
		return cl.fail(parent, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}
	cl.model = cl.req.Model
	cl.span.SetAttributes(
		attribute.String("chatstream.model", cl.req.Model),
		attribute.Int("chatstream.message_count", len(cl.req.Messages)),
	)

	ctx, abort := context.WithCancel(ctx)
	defer abort()
	unbind := cl.cfg.canceler.bind(abort)
	defer unbind()

	cl.transition(StateRequesting)

	httpReq, err := cl.newHTTPRequest(ctx)
	if err != nil {
		return cl.fail(parent, &TransportError{Err: err})
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return cl.abortOrFail(parent, &TransportError{Err: err})
	}
	cl.status = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return cl.abortOrFail(parent, newStatusError(resp, body, c.provider.ParseErrorBody(body)))
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		te := newStatusError(resp, nil, nil)
		te.Err = ErrNoBody
		return cl.abortOrFail(parent, te)
	}

	reader := stream.NewReader(resp.Body)
	defer reader.Close()

	cl.transition(StateStreaming)

	parserOpts := []sse.Option{}
	if c.maxLineSize > 0 {
		parserOpts = append(parserOpts, sse.WithMaxLineSize(c.maxLineSize))
	}
	parser := sse.NewParser(parserOpts...)

	for chunk, err := range reader.Chunks() {
		if err != nil {
			return cl.abortOrFail(parent, &TransportError{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("reading stream: %w", err),
			})
		}

		done, err := cl.process(parser.Feed(chunk))
		cl.discarded = parser.Discarded()
		switch {
		case err != nil:
			return cl.abortOrFail(parent, err)
		case cl.cfg.canceler.Cancelled():
			return cl.cancelled(parent)
		case done:
			return cl.complete(parent)
		}
	}

	_, err = cl.process(parser.Flush())
	cl.discarded = parser.Discarded()
	switch {
	case err != nil:
		return cl.abortOrFail(parent, err)
	case cl.cfg.canceler.Cancelled():
		return cl.cancelled(parent)
	}
	return cl.complete(parent)
}

func (cl *call) newHTTPRequest(ctx context.Context) (*http.Request, error) {
	p := cl.client.provider

	body, err := p.BuildRequestBody(cl.req)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(cl.host, "/") + p.Endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if cl.req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cl.req.Token)
	}

	return httpReq, nil
}

// process handles the events produced by one Feed or Flush. It stops at the
// done sentinel, at the first error, and as soon as the Canceler fires.
func (cl *call) process(events []sse.Event) (done bool, err error) {
	for _, ev := range events {
		if cl.cfg.canceler.Cancelled() {
			return false, nil
		}

		if stop, herr := cl.handle(ev); herr != nil || stop {
			return stop, herr
		}
	}
	return false, nil
}

func (cl *call) handle(ev sse.Event) (done bool, err error) {
	p := cl.client.provider

	if ev.Data == p.DoneSentinel() {
		cl.log.Debug("received done sentinel")
		return true, nil
	}

	chunk, err := p.ParseStreamChunk([]byte(ev.Data))
	if err != nil {
		return false, &MalformedEventError{Payload: ev.Data, Err: err}
	}
	if chunk == nil {
		cl.log.Debug("skipping event", "event_type", ev.Type)
		return false, nil
	}

	if chunk.Model != "" {
		cl.model = chunk.Model
	}
	if chunk.Usage != nil {
		cl.usage = chunk.Usage
	}
	if chunk.StopReason != "" {
		cl.stopReason = chunk.StopReason
	}

	if chunk.Error != nil {
		return false, &UpstreamError{Err: chunk.Error}
	}
	if !chunk.HasContent {
		return false, nil
	}

	cl.answer.WriteString(chunk.Content)
	cl.fragments++
	if cl.cfg.onText != nil {
		cl.cfg.onText(cl.answer.String(), cl.cfg.canceler)
	}

	return false, nil
}

func (cl *call) transition(to State) {
	cl.log.Debug("completion state", "from", cl.state.String(), "to", to.String())
	cl.state = to
	cl.span.SetAttributes(attribute.String("chatstream.state", to.String()))
}

// abortOrFail classifies err. A failure observed after the Canceler fired is
// the abort surfacing, not a failure.
func (cl *call) abortOrFail(ctx context.Context, err error) (string, error) {
	if cl.cfg.canceler.Cancelled() {
		return cl.cancelled(ctx)
	}
	return cl.fail(ctx, err)
}

func (cl *call) complete(ctx context.Context) (string, error) {
	cl.transition(StateCompleted)
	cl.span.SetStatus(codes.Ok, "")
	cl.finish(ctx, nil)
	return cl.answer.String(), nil
}

func (cl *call) cancelled(ctx context.Context) (string, error) {
	cl.transition(StateCancelled)
	cl.finish(ctx, nil)
	return cl.answer.String(), nil
}

func (cl *call) fail(ctx context.Context, err error) (string, error) {
	cl.transition(StateFailed)
	cl.span.RecordError(err)
	cl.span.SetStatus(codes.Error, err.Error())
	cl.log.Debug("completion failed", "error", err)

	if cl.cfg.onError != nil {
		cl.cfg.onError(err)
	}

	cl.finish(ctx, err)
	return cl.answer.String(), err
}

// finish records the outcome on the span, the result and the publisher.
func (cl *call) finish(ctx context.Context, err error) {
	elapsed := time.Since(cl.started)

	cl.span.SetAttributes(
		attribute.Int("chatstream.fragments", cl.fragments),
		attribute.Int("chatstream.answer_length", cl.answer.Len()),
	)
	if cl.discarded > 0 {
		cl.log.Warn("dropped oversized stream events", "count", cl.discarded)
	}
	cl.log.Debug("completion finished",
		"state", cl.state.String(),
		"fragments", cl.fragments,
		"duration", elapsed,
	)

	if r := cl.cfg.result; r != nil {
		*r = Result{
			CallID:          cl.id,
			State:           cl.state,
			Answer:          cl.answer.String(),
			Fragments:       cl.fragments,
			Model:           cl.model,
			StopReason:      cl.stopReason,
			Usage:           cl.usage,
			Duration:        elapsed,
			DiscardedEvents: cl.discarded,
		}
	}

	cl.publish(ctx, elapsed, err)
}

func (cl *call) publish(ctx context.Context, elapsed time.Duration, err error) {
	pub := cl.client.publisher
	if pub == nil {
		return
	}

	outcome := eventstream.OutcomeCompleted
	switch cl.state {
	case StateCancelled:
		outcome = eventstream.OutcomeCancelled
	case StateFailed:
		outcome = eventstream.OutcomeFailed
	}

	result := eventstream.CallResult{
		Outcome:       outcome,
		Answer:        cl.answer.String(),
		FragmentCount: cl.fragments,
		StopReason:    cl.stopReason,
	}
	if err != nil {
		result.Error = err.Error()
	}

	messages := 0
	if cl.req != nil {
		messages = len(cl.req.Messages)
	}

	event := eventstream.NewCompletionEvent(
		eventstream.EventSource{
			Provider: cl.client.provider.Name(),
			Host:     cl.host,
			Model:    cl.model,
		},
		eventstream.CallRequestMeta{
			CallID:       cl.id,
			MessageCount: messages,
			StartedAt:    cl.started.UTC(),
			CompletedAt:  cl.started.Add(elapsed).UTC(),
			DurationMs:   elapsed.Milliseconds(),
			HTTPStatus:   cl.status,
		},
		result,
	)

	if perr := pub.PublishCompletion(context.WithoutCancel(ctx), event); perr != nil {
		cl.log.Warn("failed to publish completion event", "event_id", event.EventID, "error", perr)
	}
}
