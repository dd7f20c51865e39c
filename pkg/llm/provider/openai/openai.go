// Package openai implements the OpenAI chat completions streaming format.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/chatstream/pkg/llm"
)

const (
	// DefaultHost is used when a request does not name a host.
	DefaultHost = "https://api.openai.com"

	endpoint     = "/v1/chat/completions"
	doneSentinel = "[DONE]"
)

// provider implements the Provider interface for OpenAI's Chat Completions API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "openai"
}

func (o *provider) Endpoint() string {
	return endpoint
}

func (o *provider) DoneSentinel() string {
	return doneSentinel
}

func (o *provider) BuildRequestBody(req *llm.ChatRequest) ([]byte, error) {
	messages := make([]openaiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openaiMessage{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		})
	}

	body, err := json.Marshal(openaiRequest{
		Messages: messages,
		Model:    req.Model,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return body, nil
}

func (o *provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		if json.Valid(payload) {
			// Well-formed JSON that is not an object: nothing to extract.
			return nil, nil
		}
		return nil, err
	}

	chunk := &llm.StreamChunk{}
	decodeOptional(fields["model"], &chunk.Model)

	if raw, ok := fields["error"]; ok && isErrorValue(raw) {
		chunk.Error = parseError(raw)
		return chunk, nil
	}

	var usage openaiUsage
	if decodeOptional(fields["usage"], &usage) && usage != (openaiUsage{}) {
		chunk.Usage = &llm.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	}

	var choices []json.RawMessage
	if !decodeOptional(fields["choices"], &choices) || len(choices) == 0 {
		return chunk, nil
	}

	var choice openaiChoice
	if err := json.Unmarshal(choices[0], &choice); err != nil {
		return chunk, nil
	}
	if choice.FinishReason != nil {
		chunk.StopReason = *choice.FinishReason
	}

	var content string
	if decodeOptional(choice.Delta["content"], &content) {
		chunk.Content = content
		chunk.HasContent = true
	}

	return chunk, nil
}

func (o *provider) ParseErrorBody(body []byte) *llm.APIError {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || !isErrorValue(envelope.Error) {
		return nil
	}
	return parseError(envelope.Error)
}

// isErrorValue reports whether an "error" field holds an actual error: an
// object or a non-empty string. false, 0, "" and null are not errors.
func isErrorValue(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '{':
		return true
	case '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	}
	return false
}

// parseError decodes an error value. Objects map onto llm.APIError; a string
// becomes the message.
func parseError(raw json.RawMessage) *llm.APIError {
	apiErr := &llm.APIError{Raw: raw}

	var obj openaiError
	if err := json.Unmarshal(raw, &obj); err == nil {
		apiErr.Message = obj.Message
		apiErr.Type = obj.Type
		apiErr.Param = obj.Param
		apiErr.Code = obj.Code
		return apiErr
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		apiErr.Message = msg
	}
	return apiErr
}

// decodeOptional unmarshals raw into v if raw is present and of the right
// shape. It reports whether v was populated.
func decodeOptional(raw json.RawMessage, v any) bool {
	if len(raw) == 0 || isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
