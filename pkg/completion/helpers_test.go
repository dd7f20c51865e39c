package completion_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
)

// delta renders one SSE event carrying a content fragment.
func delta(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	return "data: " + string(payload) + "\n\n"
}

const done = "data: [DONE]\n\n"

// sseHandler writes each part as its own flushed write.
func sseHandler(parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, part := range parts {
			io.WriteString(w, part)
			flusher.Flush()
		}
	}
}

// blockingHandler writes parts and then holds the connection open until the
// client goes away.
func blockingHandler(parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sseHandler(parts...)(w, r)
		<-r.Context().Done()
	}
}

// trackingTransport counts round trips and body closes.
type trackingTransport struct {
	base   http.RoundTripper
	calls  atomic.Int32
	closes atomic.Int32
}

func newTrackingTransport() *trackingTransport {
	return &trackingTransport{base: http.DefaultTransport}
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Body != nil && resp.Body != http.NoBody {
		resp.Body = &trackedBody{ReadCloser: resp.Body, closes: &t.closes}
	}
	return resp, nil
}

type trackedBody struct {
	io.ReadCloser
	closes *atomic.Int32
}

func (b *trackedBody) Close() error {
	b.closes.Add(1)
	return b.ReadCloser.Close()
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CompletionEvent
}

func (p *recordingPublisher) PublishCompletion(_ context.Context, event *eventstream.CompletionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*eventstream.CompletionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.CompletionEvent(nil), p.events...)
}
