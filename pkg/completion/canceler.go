package completion

import (
	"context"
	"sync"
	"sync/atomic"
)

// Canceler is a one-way switch that stops an in-flight completion call. It is
// handed to every progress callback and may also be created up front with
// NewCanceler and passed through WithCanceler, for example to a signal
// handler. Cancel is safe to call from any goroutine, any number of times.
// One Canceler may be shared by concurrent calls; Cancel stops all of them.
type Canceler struct {
	cancelled atomic.Bool

	mu     sync.Mutex
	next   uint64
	aborts map[uint64]context.CancelFunc
}

// NewCanceler returns an unset Canceler.
func NewCanceler() *Canceler {
	return &Canceler{}
}

// Cancel sets the flag and aborts every bound transport.
func (c *Canceler) Cancel() {
	if c.cancelled.Swap(true) {
		return
	}

	c.mu.Lock()
	aborts := make([]context.CancelFunc, 0, len(c.aborts))
	for _, abort := range c.aborts {
		aborts = append(aborts, abort)
	}
	c.mu.Unlock()

	for _, abort := range aborts {
		abort()
	}
}

// Cancelled reports whether Cancel has been called.
func (c *Canceler) Cancelled() bool {
	return c.cancelled.Load()
}

// bind attaches the abort signal of one call. A Canceler that was already
// cancelled aborts immediately.
func (c *Canceler) bind(abort context.CancelFunc) (unbind func()) {
	c.mu.Lock()
	if c.aborts == nil {
		c.aborts = make(map[uint64]context.CancelFunc)
	}
	id := c.next
	c.next++
	c.aborts[id] = abort
	c.mu.Unlock()

	if c.cancelled.Load() {
		abort()
	}

	return func() {
		c.mu.Lock()
		delete(c.aborts, id)
		c.mu.Unlock()
	}
}
