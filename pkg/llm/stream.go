package llm

import (
	"encoding/json"
	"fmt"
)

// StreamChunk represents a single decoded event of a streaming response.
// Exactly one of Error or Content is meaningful; a chunk carrying neither is
// a heartbeat or control frame and is ignored by consumers.
type StreamChunk struct {
	// Model that generated the chunk, when reported.
	Model string `json:"model,omitempty"`

	// Content is the incremental text fragment. HasContent distinguishes an
	// empty fragment from an absent one.
	Content    string `json:"content,omitempty"`
	HasContent bool   `json:"-"`

	// Stop reason (only present on the final content chunk)
	StopReason string `json:"stop_reason,omitempty"`

	// Usage metrics, for providers that report them on the last chunk.
	Usage *Usage `json:"usage,omitempty"`

	// Error is set when the upstream reported a failure inside the stream.
	Error *APIError `json:"error,omitempty"`
}

// Usage contains token counts reported by the upstream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// APIError is the structured error object an upstream embeds in a stream
// event or an error response body.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`

	// Code is a string for some providers and a number for others.
	Code any `json:"code,omitempty"`

	// Raw preserves the error object as received.
	Raw json.RawMessage `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "" && e.Type != "":
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	case e.Message != "":
		return e.Message
	case len(e.Raw) > 0:
		return string(e.Raw)
	default:
		return "unknown upstream error"
	}
}
