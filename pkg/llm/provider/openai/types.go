package openai

import "encoding/json"

// openaiRequest is the streaming chat completions request body.
type openaiRequest struct {
	Messages []openaiMessage `json:"messages"`
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
}

// openaiMessage represents a message in OpenAI's format.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// openaiChoice is one entry of a chunk's choices array. Only the first choice
// is consumed.
type openaiChoice struct {
	Index        int                        `json:"index"`
	Delta        map[string]json.RawMessage `json:"delta"`
	FinishReason *string                    `json:"finish_reason"`
}

// openaiError is the error object found in error response bodies and in
// error events of a stream.
type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param"`
	Code    any    `json:"code"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
