package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalWaitBlocksUntilSet(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.IsSet())

	done := make(chan error, 1)
	go func() { done <- s.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned before Set")
	case <-time.After(20 * time.Millisecond):
	}

	s.Set()
	require.NoError(t, <-done)
	assert.True(t, s.IsSet())
}

func TestSignalSetTwiceIsNoop(t *testing.T) {
	s := NewSignal()
	s.Set()
	assert.NotPanics(t, s.Set)
	assert.True(t, s.IsSet())
}

func TestSignalWaitAfterSetIgnoresCancelledContext(t *testing.T) {
	s := NewSignal()
	s.Set()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Wait(ctx))
}

func TestSignalWaitCancelled(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
	assert.False(t, s.IsSet())
}

func TestSignalManyWaiters(t *testing.T) {
	s := NewSignal()
	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { errs <- s.Wait(context.Background()) }()
	}
	s.Set()
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}
