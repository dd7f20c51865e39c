// Package worker provides an asynchronous worker pool that runs independent
// streaming completions concurrently.
//
// Each job owns its own completion call and Canceler: jobs share the
// Completer but no mutable state, so one failing job never affects another.
// Pool.Cancel stops them all gracefully.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/chatstream/pkg/completion"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Completer runs one streaming completion. *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req *llm.ChatRequest, opts ...completion.CallOption) (string, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Index is the caller's position for the job, echoed on its Outcome.
	Index int

	Request *llm.ChatRequest

	// Timeout bounds the job's call. Zero means no limit.
	Timeout time.Duration
}

// Outcome is the terminal report for one Job.
type Outcome struct {
	Job    Job
	Answer string
	Result completion.Result
	Err    error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Completer issues the completions. Required.
	Completer Completer

	// Context is the parent of every job context. Cancelling it aborts
	// in-flight calls as transport failures; use Pool.Cancel for a graceful
	// stop. Defaults to context.Background().
	Context context.Context

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnDone receives every Outcome. It is called from worker goroutines and
	// must be safe for concurrent use.
	OnDone func(Outcome)

	// Logger defaults to logger.Nop().
	Logger *slog.Logger
}

// Pool processes completion jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu        sync.Mutex
	cancelled bool
	live      map[*completion.Canceler]struct{}
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Completer == nil {
		return nil, fmt.Errorf("worker pool requires a Completer")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Context == nil {
		c.Context = context.Background()
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		live:   make(map[*completion.Canceler]struct{}),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"index", job.Index,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"index", job.Index,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// Cancel stops the pool gracefully: in-flight calls end as
// completion.StateCancelled with their partial answers, and jobs not yet
// started are reported as cancelled without a request. Outcomes of cancelled
// jobs carry no error. Safe to call from any goroutine, any number of times.
func (p *Pool) Cancel() {
	p.mu.Lock()
	p.cancelled = true
	live := make([]*completion.Canceler, 0, len(p.live))
	for c := range p.live {
		live = append(live, c)
	}
	p.mu.Unlock()

	for _, c := range live {
		c.Cancel()
	}
}

// track registers a Canceler for one job. It reports false once the pool has
// been cancelled.
func (p *Pool) track() (c *completion.Canceler, release func(), ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return nil, nil, false
	}

	c = completion.NewCanceler()
	p.live[c] = struct{}{}
	return c, func() {
		p.mu.Lock()
		delete(p.live, c)
		p.mu.Unlock()
	}, true
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob runs one completion and reports its Outcome.
func (p *Pool) processJob(job Job) {
	ctx := p.config.Context
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	out := Outcome{Job: job}

	canceler, release, ok := p.track()
	if !ok || ctx.Err() != nil {
		// Stopped before it started; no request is sent.
		p.logger.Debug("batch job skipped", "index", job.Index)
		out.Result.State = completion.StateCancelled
		p.report(out)
		return
	}
	defer release()

	out.Answer, out.Err = p.config.Completer.Complete(ctx, job.Request,
		completion.WithResult(&out.Result),
		completion.WithCanceler(canceler),
	)
	if out.Err != nil {
		p.logger.Warn("batch completion failed",
			"index", job.Index,
			"error", out.Err,
		)
	} else {
		p.logger.Debug("batch completion finished",
			"index", job.Index,
			"fragments", out.Result.Fragments,
		)
	}

	p.report(out)
}

func (p *Pool) report(out Outcome) {
	if p.config.OnDone != nil {
		p.config.OnDone(out)
	}
}
