// Package provider defines the wire-format boundary between the completion
// client and a specific chat-completion API.
package provider

import "github.com/papercomputeco/chatstream/pkg/llm"

// Provider defines the interface for building streaming requests and decoding
// their events. Each implementation knows one upstream API format.
type Provider interface {
	// Name returns the canonical provider name (e.g., "openai").
	Name() string

	// Endpoint returns the request path appended to the configured host.
	Endpoint() string

	// DoneSentinel returns the event payload that marks a normal end of stream.
	DoneSentinel() string

	// BuildRequestBody serializes req into the provider's streaming request
	// body.
	BuildRequestBody(req *llm.ChatRequest) ([]byte, error)

	// ParseStreamChunk converts a single event payload into the internal format.
	// Returns an error only if the payload cannot be decoded at all.
	// Returns (nil, nil) if the payload is well-formed but has a shape the
	// provider does not recognize, so the chunk should be skipped.
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)

	// ParseErrorBody decodes an error response body. It returns nil when the
	// body carries no recognizable error object.
	ParseErrorBody(body []byte) *llm.APIError
}
