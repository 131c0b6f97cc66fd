package async

import (
	"context"
	"sync"
)

// Handle is the eventual result of a scheduled task. It cannot cancel the
// task; callers may only wait for it or discard it.
type Handle[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newHandle[T any]() *Handle[T] {
	return &Handle[T]{done: make(chan struct{})}
}

func (h *Handle[T]) complete(value T, err error) {
	h.once.Do(func() {
		h.value = value
		h.err = err
		close(h.done)
	})
}

// Done is closed once the result is available
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task completes or ctx is done. Giving up on ctx does
// not stop the task.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the task error once completed, nil before
func (h *Handle[T]) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Submit schedules fn on the pool. Enqueue failures resolve the handle
// immediately.
func Submit[T any](p *Pool, ctx context.Context, name string, fn func(ctx context.Context) (T, error)) *Handle[T] {
	return SubmitWrapped(p, ctx, name, fn, nil)
}

// SubmitWrapped is Submit with every failure, enqueue failures included,
// passed through wrap before it reaches the handle
func SubmitWrapped[T any](p *Pool, ctx context.Context, name string, fn func(ctx context.Context) (T, error), wrap func(error) error) *Handle[T] {
	h := newHandle[T]()
	fail := func(err error) error {
		if err != nil && wrap != nil {
			return wrap(err)
		}
		return err
	}

	var value T
	err := p.Enqueue(ctx, name,
		func(ctx context.Context) error {
			v, err := fn(ctx)
			value = v
			return err
		},
		func(err error) {
			h.complete(value, fail(err))
		},
	)
	if err != nil {
		var zero T
		h.complete(zero, fail(err))
	}
	return h
}

// Failed returns a handle already resolved with err
func Failed[T any](err error) *Handle[T] {
	h := newHandle[T]()
	var zero T
	h.complete(zero, err)
	return h
}

// Resolved returns a handle already resolved with value
func Resolved[T any](value T) *Handle[T] {
	h := newHandle[T]()
	h.complete(value, nil)
	return h
}
