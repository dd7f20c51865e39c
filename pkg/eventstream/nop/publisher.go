// Package nop provides the publisher used when event_stream.provider is "none".
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
)

// Publisher drops completion events, counting the ones it accepted.
type Publisher struct {
	accepted atomic.Int64
	closed   atomic.Bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishCompletion(_ context.Context, event *eventstream.CompletionEvent) error {
	switch {
	case event == nil:
		return eventstream.ErrNilCompletionEvent
	case p.closed.Load():
		return eventstream.ErrPublisherClosed
	}
	p.accepted.Add(1)
	return nil
}

// Accepted reports how many events were published and dropped.
func (p *Publisher) Accepted() int64 {
	return p.accepted.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}
