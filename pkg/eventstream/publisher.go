package eventstream

import "context"

// Publisher delivers a CompletionEvent for every finished completion call.
// Implementations must be safe for concurrent use: batch runs publish from
// several workers at once.
type Publisher interface {
	PublishCompletion(ctx context.Context, event *CompletionEvent) error
	Close() error
}
