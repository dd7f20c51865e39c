package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionFinished is emitted once a completion call ends,
	// whatever its outcome.
	EventTypeCompletionFinished = "chatstream.completion.finished"
)

// Outcomes recorded in CompletionEvent.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// CompletionEvent is a transport-neutral event payload for a finished
// completion call.
type CompletionEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	RequestMeta   CallRequestMeta `json:"request_meta"`
	Result        CallResult      `json:"result"`
}

// EventSource identifies where the call originated.
type EventSource struct {
	Provider string `json:"provider"`
	Host     string `json:"host"`
	Model    string `json:"model"`
}

// CallRequestMeta captures request lifecycle metadata for the event.
type CallRequestMeta struct {
	CallID       string    `json:"call_id"`
	MessageCount int       `json:"message_count"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
	HTTPStatus   int       `json:"http_status,omitempty"`
}

// CallResult captures what the call produced.
type CallResult struct {
	Outcome       string `json:"outcome"`
	Answer        string `json:"answer"`
	FragmentCount int    `json:"fragment_count"`
	StopReason    string `json:"stop_reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// NewCompletionEvent stamps a new event with a fresh ID and the current time.
func NewCompletionEvent(source EventSource, meta CallRequestMeta, result CallResult) *CompletionEvent {
	return &CompletionEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompletionFinished,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Result:        result,
	}
}
