// Package async runs write operations on a bounded worker pool and reports
// their outcome through typed handles.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrPoolNotStarted is returned when enqueuing before Start
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolClosed is returned when enqueuing after Shutdown or Stop, and
	// delivered to tasks discarded by Stop
	ErrPoolClosed = errors.New("worker pool closed")
)

// Default pool sizing
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 100
)

// task is a unit of work. finish is called exactly once with the outcome.
type task struct {
	name   string
	ctx    context.Context
	fn     func(ctx context.Context) error
	finish func(error)
}

// Pool executes tasks on a fixed number of workers. Tasks run in no
// particular order; two tasks enqueued back to back may run concurrently.
type Pool struct {
	tasks       chan task
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger

	// senders hold the read lock while sending so that closing the channel
	// under the write lock never races a send
	mu       sync.RWMutex
	started  bool
	shutdown bool
}

// NewPool creates a new worker pool. Non-positive sizes use the defaults.
func NewPool(workerCount, queueSize int, logger *zap.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		tasks:       make(chan task, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.workerCount
}

// Start starts the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.shutdown {
		return
	}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
}

// worker processes tasks until the channel is closed or the pool stopped
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(id, t)
		}
	}
}

func (p *Pool) run(id int, t task) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", t.name, r)
			}
		}()
		// Enqueued work is not cancellable; only the caller's values carry over.
		err = t.fn(context.WithoutCancel(t.ctx))
	}()

	if err != nil {
		p.logger.Warn("task failed",
			zap.Int("worker", id),
			zap.String("op", t.name),
			zap.Error(err))
	}
	t.finish(err)
}

// Enqueue schedules fn. finish receives its result, or the reason it never
// ran. Enqueue blocks while the queue is full, until ctx is done.
func (p *Pool) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error, finish func(error)) error {
	if finish == nil {
		finish = func(error) {}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.shutdown {
		return ErrPoolClosed
	}
	if !p.started {
		return ErrPoolNotStarted
	}

	t := task{name: name, ctx: ctx, fn: fn, finish: finish}
	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", name, ctx.Err())
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks and waits for queued ones to complete
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	started := p.started
	close(p.tasks)
	p.mu.Unlock()

	if started {
		p.wg.Wait()
	}
	p.cancel()
}

// Stop stops the workers without running queued tasks. Running tasks finish;
// queued ones fail with ErrPoolClosed.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	for {
		select {
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			t.finish(ErrPoolClosed)
		default:
			return
		}
	}
}
