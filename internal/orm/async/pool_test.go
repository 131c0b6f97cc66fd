package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Defaults(t *testing.T) {
	pool := NewPool(0, 0, nil)
	assert.Equal(t, DefaultWorkers, pool.Workers())
	assert.Equal(t, DefaultQueueSize, cap(pool.tasks))
}

func TestPool_EnqueueBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, nil)

	err := pool.Enqueue(context.Background(), "early", func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrPoolNotStarted)

	h := Submit(pool, context.Background(), "early", func(context.Context) (int, error) { return 1, nil })
	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestSubmit_DeliversValue(t *testing.T) {
	pool := NewPool(2, 10, nil)
	pool.Start()
	defer pool.Shutdown()

	h := Submit(pool, context.Background(), "answer", func(context.Context) (int, error) {
		return 42, nil
	})

	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.NoError(t, h.Err())
}

func TestSubmit_DeliversError(t *testing.T) {
	pool := NewPool(2, 10, nil)
	pool.Start()
	defer pool.Shutdown()

	boom := errors.New("boom")
	h := Submit(pool, context.Background(), "failing", func(context.Context) (string, error) {
		return "", boom
	})

	<-h.Done()
	assert.ErrorIs(t, h.Err(), boom)
}

func TestSubmitWrapped(t *testing.T) {
	pool := NewPool(1, 10, nil)
	pool.Start()

	wrap := func(err error) error { return fmt.Errorf("wrapped: %w", err) }

	boom := errors.New("boom")
	h := SubmitWrapped(pool, context.Background(), "failing", func(context.Context) (int, error) {
		return 0, boom
	}, wrap)
	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "wrapped: boom")

	ok := SubmitWrapped(pool, context.Background(), "ok", func(context.Context) (int, error) {
		return 7, nil
	}, wrap)
	v, err := ok.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	pool.Shutdown()

	late := SubmitWrapped(pool, context.Background(), "late", func(context.Context) (int, error) { return 0, nil }, wrap)
	assert.ErrorIs(t, late.Err(), ErrPoolClosed)
	assert.EqualError(t, late.Err(), "wrapped: worker pool closed")
}

func TestSubmit_PanicBecomesError(t *testing.T) {
	pool := NewPool(1, 10, nil)
	pool.Start()
	defer pool.Shutdown()

	h := Submit(pool, context.Background(), "panicky", func(context.Context) (int, error) {
		panic("kaboom")
	})

	_, err := h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// the worker survives the panic
	h2 := Submit(pool, context.Background(), "after", func(context.Context) (int, error) { return 1, nil })
	v, err := h2.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSubmit_NotCancelledWithCaller(t *testing.T) {
	pool := NewPool(1, 10, nil)
	pool.Start()
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	h := Submit(pool, ctx, "slow", func(ctx context.Context) (bool, error) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		return ctx.Err() == nil, nil
	})

	<-started
	cancel()

	ok, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok, "enqueued work keeps running after the caller's context is cancelled")
}

func TestHandle_WaitTimeout(t *testing.T) {
	pool := NewPool(1, 10, nil)
	pool.Start()
	defer pool.Shutdown()

	release := make(chan struct{})
	h := Submit(pool, context.Background(), "blocked", func(context.Context) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, h.Err(), "not completed yet")

	close(release)
	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPool_MultipleWorkers(t *testing.T) {
	pool := NewPool(4, 100, nil)
	pool.Start()
	defer pool.Shutdown()

	var running, peak atomic.Int32
	handles := make([]*Handle[int], 20)
	for i := range handles {
		i := i
		handles[i] = Submit(pool, context.Background(), "concurrent", func(context.Context) (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return i, nil
		})
	}

	for i, h := range handles {
		v, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestPool_ShutdownDrainsQueue(t *testing.T) {
	pool := NewPool(1, 10, nil)
	pool.Start()

	var executed atomic.Int32
	var handles []*Handle[struct{}]
	for i := 0; i < 5; i++ {
		handles = append(handles, Submit(pool, context.Background(), "queued", func(context.Context) (struct{}, error) {
			time.Sleep(time.Millisecond)
			executed.Add(1)
			return struct{}{}, nil
		}))
	}

	pool.Shutdown()
	assert.Equal(t, int32(5), executed.Load())
	for _, h := range handles {
		assert.NoError(t, h.Err())
	}

	h := Submit(pool, context.Background(), "late", func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, h.Err(), ErrPoolClosed)
}

func TestPool_StopFailsQueuedTasks(t *testing.T) {
	pool := NewPool(1, 10, nil)
	pool.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	first := Submit(pool, context.Background(), "running", func(context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	})
	<-started

	queued := Submit(pool, context.Background(), "queued", func(context.Context) (int, error) { return 2, nil })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Stop()
	}()

	close(release)
	wg.Wait()

	v, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	<-queued.Done()
	_, err = queued.Wait(ctx)
	if err != nil {
		assert.ErrorIs(t, err, ErrPoolClosed)
	}
}

func TestFailedAndResolved(t *testing.T) {
	boom := errors.New("boom")
	_, err := Failed[int](boom).Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	v, err := Resolved("ok").Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
