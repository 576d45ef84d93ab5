package async

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGo_RunsTask(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	// Give the deferred recover a moment; the test passes if nothing crashed.
	time.Sleep(10 * time.Millisecond)
}

func TestSafeGo_TimeoutPropagates(t *testing.T) {
	observed := make(chan error, 1)

	SafeGo(context.Background(), 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			observed <- ctx.Err()
			return ctx.Err()
		case <-time.After(time.Second):
			observed <- nil
			return nil
		}
	})

	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task never observed timeout")
	}
}

func TestWorkerPool_ProcessesTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, "test pool", time.Second)

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
			return nil
		})
		require.NoError(t, err)
	}

	wg.Wait()
	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int64(20), atomic.LoadInt64(&counter))
}

func TestWorkerPool_CollectsErrors(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", time.Second)

	taskErr := fmt.Errorf("task failed")
	done := make(chan struct{})
	err := pool.Submit(func(ctx context.Context) error {
		defer close(done)
		return taskErr
	})
	require.NoError(t, err)
	<-done

	select {
	case got := <-pool.Errors():
		assert.EqualError(t, got, "task failed")
	case <-time.After(time.Second):
		t.Fatal("error never reported")
	}

	require.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_RecoversTaskPanic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", time.Second)

	done := make(chan struct{})
	err := pool.Submit(func(ctx context.Context) error {
		defer close(done)
		panic("task panic")
	})
	require.NoError(t, err)
	<-done

	select {
	case got := <-pool.Errors():
		assert.Contains(t, got.Error(), "panic")
	case <-time.After(time.Second):
		t.Fatal("panic never reported as error")
	}

	// The worker survives the panic and processes the next task.
	ran := make(chan struct{})
	err = pool.Submit(func(ctx context.Context) error {
		close(ran)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}

	require.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", time.Second)
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestWorkerPool_SubmitDuringShutdownReportsDrop(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", time.Second)

	block := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		<-block
		return nil
	}))

	// Close the queue as Shutdown does. The busy worker keeps doneCh open,
	// so Submit lands on the closed channel instead of the shutdown check.
	close(pool.workCh)

	err := pool.Submit(func(ctx context.Context) error { return nil })
	assert.EqualError(t, err, "worker pool shut down")

	close(block)
	require.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_TrySubmit(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", time.Second)

	block := make(chan struct{})
	// Occupy the single worker, then fill the buffered queue.
	ok := pool.TrySubmit(func(ctx context.Context) error {
		<-block
		return nil
	})
	require.True(t, ok)

	// Queue capacity is workers*2; fill until TrySubmit refuses.
	refused := false
	for i := 0; i < 10; i++ {
		if !pool.TrySubmit(func(ctx context.Context) error { return nil }) {
			refused = true
			break
		}
	}
	assert.True(t, refused, "TrySubmit should refuse once the queue is full")

	close(block)
	require.NoError(t, pool.Shutdown(time.Second))
}
