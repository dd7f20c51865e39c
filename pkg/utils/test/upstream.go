// Package testutils holds fakes shared by the chatstream test suites.
package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Done is the end-of-stream event.
const Done = "data: [DONE]\n\n"

// Delta renders one SSE event carrying a content fragment.
func Delta(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	return "data: " + string(payload) + "\n\n"
}

// SSEHandler writes each part as its own flushed write.
func SSEHandler(parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, part := range parts {
			_, _ = io.WriteString(w, part)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// Request is a decoded chat completion request seen by an Upstream.
type Request struct {
	Authorization string
	Model         string
	Stream        bool
	Messages      []RequestMessage
}

type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Upstream is an httptest server standing in for an OpenAI compatible API.
// It records every request and delegates the response to its handler, which
// can still read the request body.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []Request
}

// NewUpstream starts an Upstream answering with handler. Close it when done.
func NewUpstream(handler http.HandlerFunc) *Upstream {
	u := &Upstream{handler: handler}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	return u
}

// SetHandler swaps the response behavior for later requests.
func (u *Upstream) SetHandler(h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handler = h
}

// Requests returns a copy of the requests seen so far.
func (u *Upstream) Requests() []Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Request(nil), u.requests...)
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		Model    string           `json:"model"`
		Stream   bool             `json:"stream"`
		Messages []RequestMessage `json:"messages"`
	}
	_ = json.Unmarshal(raw, &body)

	u.mu.Lock()
	u.requests = append(u.requests, Request{
		Authorization: r.Header.Get("Authorization"),
		Model:         body.Model,
		Stream:        body.Stream,
		Messages:      body.Messages,
	})
	h := u.handler
	u.mu.Unlock()

	h(w, r)
}
