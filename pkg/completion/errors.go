package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

// ErrInvalidArgument is returned before any network activity when a request
// cannot be sent, most commonly because its message list is empty.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrNoBody is the cause of a TransportError for a successful response that
// carried no body to stream.
var ErrNoBody = errors.New("response has no body")

// TransportError reports a non-200 response or a network failure that was not
// caused by cancellation.
type TransportError struct {
	// StatusCode is zero when no response was received. Status is set only
	// when the response itself was the failure, not for a read fault after
	// streaming began.
	StatusCode int
	Status     string

	// Body holds the response body when it decoded as JSON.
	Body json.RawMessage

	// APIError is the provider error object found in Body, if any.
	APIError *llm.APIError

	Err error
}

func newStatusError(resp *http.Response, body []byte, apiErr *llm.APIError) *TransportError {
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	te := &TransportError{
		StatusCode: resp.StatusCode,
		Status:     status,
		APIError:   apiErr,
	}
	if len(body) > 0 && json.Valid(body) {
		te.Body = json.RawMessage(body)
	}
	return te
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport error")

	if e.Status != "" {
		b.WriteString(": upstream returned ")
		b.WriteString(e.Status)
	}
	switch {
	case e.APIError != nil:
		b.WriteString(": ")
		b.WriteString(e.APIError.Error())
	case len(e.Body) > 0:
		b.WriteString(": ")
		b.WriteString(utils.Truncate(string(e.Body), 512))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError reports an error object delivered inside the event stream.
type UpstreamError struct {
	Err *llm.APIError
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedEventError reports an event payload that is neither the done
// sentinel nor valid JSON.
type MalformedEventError struct {
	Payload string
	Err     error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event payload %q: %v", utils.Truncate(e.Payload, 128), e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }
