package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryJob(t *testing.T) {
	p := NewPool(nil, WithWorkers(4), WithQueueSize(8))
	defer p.Shutdown(context.Background())
	assert.Equal(t, 4, p.Workers())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()
	assert.EqualValues(t, 100, ran.Load())
}

func TestPoolSurvivesPanics(t *testing.T) {
	p := NewPool(nil, WithWorkers(1))
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestPoolSubmitBlocksWhenFull(t *testing.T) {
	p := NewPool(nil, WithWorkers(1), WithQueueSize(1))
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, func() {}), context.DeadlineExceeded)

	close(release)
	p.Shutdown(context.Background())
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	p := NewPool(nil, WithWorkers(2), WithQueueSize(16))
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func() {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}
	p.Shutdown(context.Background())
	assert.EqualValues(t, 10, ran.Load())

	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrPoolClosed)
	assert.NotPanics(t, func() { p.Shutdown(context.Background()) })
}

func TestDefaultWorkers(t *testing.T) {
	assert.Positive(t, DefaultWorkers())
	p := NewPool(nil, WithWorkers(0))
	defer p.Shutdown(context.Background())
	assert.Equal(t, DefaultWorkers(), p.Workers())
}
