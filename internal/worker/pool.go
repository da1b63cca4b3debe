// Package worker bounds the concurrency of internal/validate's
// confirmation probes (spec's post-attack "success condition" check): a
// validate.Config.Probes list with hundreds of hostnames shouldn't spawn hundreds of
// sockets at once, so probes are fanned out through a small fixed-size
// pool instead of one socket per hostname.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed indicates the pool has already been shut down.
	ErrPoolClosed = errors.New("worker: pool closed")

	// ErrJobTimeout indicates a probe waited longer than QueueTimeout
	// for room in the queue.
	ErrJobTimeout = errors.New("worker: job timed out waiting in queue")
)

// Job is one confirmation probe submitted to a Pool.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a plain function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Config controls pool sizing.
type Config struct {
	// Workers caps how many probes run concurrently. Default:
	// runtime.NumCPU() * 4.
	Workers int

	// QueueSize bounds how many probes may wait for a free worker.
	// Default: Workers * 100.
	QueueSize int

	// QueueTimeout bounds how long Submit waits for room in the queue
	// before returning ErrJobTimeout; once queued, a job waits for a
	// worker without this limit. 0 = wait indefinitely.
	QueueTimeout time.Duration

	// PanicHandler, if set, is called with the recovered value when a
	// probe panics instead of propagating the panic to the worker
	// goroutine.
	PanicHandler func(interface{})
}

// Pool runs Jobs on a fixed number of worker goroutines.
type Pool struct {
	workers      int
	queue        chan *jobWrapper
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	closed       atomic.Bool
	queueSize    int
	queueTimeout time.Duration
	panicHandler func(interface{})

	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsFailed    atomic.Uint64
	jobsTimedOut  atomic.Uint64
}

type jobWrapper struct {
	job      Job
	ctx      context.Context
	resultCh chan error
}

// NewPool starts cfg.Workers worker goroutines and returns a ready Pool.
func NewPool(cfg Config) *Pool {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU() * 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = cfg.Workers * 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:      cfg.Workers,
		queue:        make(chan *jobWrapper, cfg.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
		queueSize:    cfg.QueueSize,
		queueTimeout: cfg.QueueTimeout,
		panicHandler: cfg.PanicHandler,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case wrapper, ok := <-p.queue:
			if !ok {
				return
			}
			p.executeJob(wrapper)
		}
	}
}

// executeJob runs one probe with panic recovery: a single malformed
// resolver response should fail that probe, not bring down the pool.
func (p *Pool) executeJob(wrapper *jobWrapper) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			select {
			case wrapper.resultCh <- errors.New("worker: job panicked"):
			default:
			}
			p.jobsFailed.Add(1)
		}
	}()

	err := wrapper.job.Execute(wrapper.ctx)

	select {
	case wrapper.resultCh <- err:
	default:
		// Caller already gave up (timeout or canceled context).
	}

	if err != nil {
		p.jobsFailed.Add(1)
	} else {
		p.jobsCompleted.Add(1)
	}
}

// Submit queues job and blocks until it completes, ctx is canceled, or
// (if QueueTimeout is set) the queue has no room in time.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.jobsSubmitted.Add(1)

	wrapper := &jobWrapper{
		job:      job,
		ctx:      ctx,
		resultCh: make(chan error, 1),
	}

	var timeoutCtx context.Context
	var cancel context.CancelFunc
	if p.queueTimeout > 0 {
		timeoutCtx, cancel = context.WithTimeout(ctx, p.queueTimeout)
		defer cancel()
	} else {
		timeoutCtx = ctx
	}

	select {
	case p.queue <- wrapper:
		select {
		case err := <-wrapper.resultCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}

	case <-timeoutCtx.Done():
		p.jobsTimedOut.Add(1)
		return ErrJobTimeout

	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Close stops accepting new probes and waits for in-flight ones to
// finish.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return ErrPoolClosed
	}

	close(p.queue)
	p.wg.Wait()
	p.cancel()

	return nil
}

// Stats reports counters for a confirmation pass's summary.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	TimedOut  uint64
}

// Stats returns the pool's current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.jobsSubmitted.Load(),
		Completed: p.jobsCompleted.Load(),
		Failed:    p.jobsFailed.Load(),
		TimedOut:  p.jobsTimedOut.Load(),
	}
}
