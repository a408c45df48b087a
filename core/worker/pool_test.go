package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunsAllJobs(t *testing.T) {
	p := New(Config{Workers: 3, QueueSize: 2}, zap.NewNop())

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			atomic.AddInt32(&done, 1)
		}))
	}
	wg.Wait()
	p.Close()

	assert.Equal(t, int32(20), atomic.LoadInt32(&done))
}

func TestPool_BoundedConcurrency(t *testing.T) {
	p := New(Config{Workers: 2, QueueSize: 10}, zap.NewNop())
	defer p.Close()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(Config{Workers: 1}, zap.NewNop())
	p.Close()

	err := p.Submit(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 0}, zap.NewNop())
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-block
	}))
	<-started
	// The dispatcher holds one job while it waits for the worker.
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(ctx context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	p.Close()
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 1}, zap.NewNop())

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
	p.Close()
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 4}, zap.NewNop())

	block := make(chan struct{})
	var done int32
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		<-block
		atomic.AddInt32(&done, 1)
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
			atomic.AddInt32(&done, 1)
		}))
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	close(block)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&done))
}
