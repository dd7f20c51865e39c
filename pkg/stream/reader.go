// Package stream turns an HTTP response body into a lazy sequence of byte
// chunks with a guaranteed, exactly-once release of the body.
package stream

import (
	"errors"
	"io"
	"iter"
	"sync"
)

// DefaultChunkSize is the read buffer size used when no option overrides it.
const DefaultChunkSize = 32 * 1024

// ErrClosed is returned by Next once the underlying body has been released.
var ErrClosed = errors.New("stream: reader closed")

// Option configures a Reader.
type Option func(*Reader)

// WithChunkSize sets the maximum number of bytes returned by a single Next.
// Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// Reader pulls chunks from a body. A Reader is bound to exactly one body and
// cannot be reused once released. It is not safe for concurrent reads, but
// Close may be called from any goroutine.
type Reader struct {
	body      io.ReadCloser
	chunkSize int

	// pendingErr is a terminal error observed together with data; it is
	// returned on the following call.
	pendingErr error

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewReader wraps body.
func NewReader(body io.ReadCloser, opts ...Option) *Reader {
	r := &Reader{
		body:      body,
		chunkSize: DefaultChunkSize,
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next blocks until the next non-empty chunk is available. Each chunk is a
// fresh slice owned by the caller. At the end of the stream Next returns
// io.EOF; any terminal result releases the body.
func (r *Reader) Next() ([]byte, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	if r.pendingErr != nil {
		err := r.pendingErr
		r.pendingErr = nil
		r.Close()
		return nil, err
	}

	buf := make([]byte, r.chunkSize)
	for {
		n, err := r.body.Read(buf)
		if n > 0 {
			if err != nil {
				r.pendingErr = err
			}
			return buf[:n], nil
		}
		if err != nil {
			r.Close()
			return nil, err
		}
	}
}

// Chunks returns a forward-only sequence over the remaining chunks. The
// sequence ends at io.EOF, after yielding a non-EOF error, or when the
// consumer stops early. The body is released in all three cases.
func (r *Reader) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer r.Close()

		for {
			chunk, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Close releases the body. It is idempotent and returns the result of the
// first release.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}

func (r *Reader) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
