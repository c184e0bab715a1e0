package core

import (
	"context"
	"sync"
)

// Signal is a set-once completion event. Only the first Set has an effect.
type Signal struct {
	once sync.Once
	done chan struct{}
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set marks the signal and releases every waiter.
func (s *Signal) Set() {
	s.once.Do(func() { close(s.done) })
}

// IsSet reports whether Set has been called.
func (s *Signal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done exposes the underlying channel for use in select statements.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal is set or ctx is done.
// A signal that is already set wins over a cancelled context.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
