package core

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/resume-parser/constants"
)

var (
	// ErrStageFailed matches any error raised inside a pipeline stage.
	ErrStageFailed = errors.New("stage failed")
	// ErrWarmup marks failures of the startup warmup run.
	ErrWarmup = errors.New("warmup failed")
	// ErrPoolClosed is returned when work is submitted after Shutdown.
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// StageError records which stage failed and why.
// errors.Is matches both ErrStageFailed and the underlying cause.
type StageError struct {
	Stage constants.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{ErrStageFailed, e.Err}
}
