package artifact

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// PoolConfig configures the file-I/O worker pool.
type PoolConfig struct {
	// Workers is the fixed number of goroutines executing file operations.
	Workers int
	// QueueSize is the capacity of the task queue.
	QueueSize int
}

// DefaultPoolConfig returns sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 4, QueueSize: 64}
}

type task struct {
	fn   func() error
	done chan error
}

// Pool runs file operations on a bounded set of workers so that large-file
// I/O never runs on the request-handling goroutine itself. The worker count
// is the hard upper bound on concurrent file operations; callers queue and
// block until their task completes.
type Pool struct {
	cfg    PoolConfig
	tasks  chan task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	completedOK  atomic.Int64
	completedErr atomic.Int64

	mu      sync.Mutex
	running bool
}

// NewPool creates a new worker pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Pool{
		cfg:   cfg,
		tasks: make(chan task, cfg.QueueSize),
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker pool already running")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return nil
}

// Run submits fn to the pool and blocks until it completes. When the queue
// is full the caller waits for a slot rather than spawning unbounded work;
// ctx cancels the wait for a slot. Once submitted the task always runs to
// completion, so fn must observe ctx itself to abort early.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("worker pool not running")
	}
	p.mu.Unlock()

	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool stopped")
	}

	return <-t.done
}

// Stop shuts down the pool after draining queued tasks.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
	p.cancel()
}

// Stats returns completion counters for the pool.
func (p *Pool) Stats() (ok, failed int64) {
	return p.completedOK.Load(), p.completedErr.Load()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t, open := <-p.tasks:
			if !open {
				return
			}
			err := t.fn()
			if err != nil {
				p.completedErr.Add(1)
			} else {
				p.completedOK.Add(1)
			}
			t.done <- err
		case <-p.ctx.Done():
			return
		}
	}
}
