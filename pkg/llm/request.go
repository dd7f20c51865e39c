// Package llm holds the provider-agnostic request and stream types.
//
// ChatRequest.Validate rejects only what no upstream could accept: an empty
// message list (ErrNoMessages) or a message with an unknown role. The model
// and host are passed through untouched; an empty model is left for the
// upstream to reject, and an unreachable host surfaces as a transport error.
package llm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrNoMessages is returned by ChatRequest.Validate when the message list is empty.
var ErrNoMessages = errors.New("at least one message is required")

// ChatRequest represents a provider-agnostic streaming chat completion request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini")
	Model string `json:"model"`

	// Conversation messages, in order
	Messages []Message `json:"messages" validate:"dive"`

	// Host is the base URL of the upstream API. Empty means the client default.
	Host string `json:"-"`

	// Token is the bearer credential sent with the request.
	Token string `json:"-"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the request before any network activity. An empty message
// list is reported as ErrNoMessages so callers can classify it with errors.Is.
func (r *ChatRequest) Validate() error {
	if r == nil || len(r.Messages) == 0 {
		return ErrNoMessages
	}

	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(fields, ", "))
}
