package eventstream

import "errors"

var (
	ErrNilCompletionEvent = errors.New("nil completion event")

	// ErrPublisherClosed is returned by PublishCompletion after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
