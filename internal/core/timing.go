package core

import (
	"log/slog"
	"time"
)

// TimeAndTell runs fn and measures its wall-clock duration. When debug is on the
// label and elapsed time are logged. Errors from fn are returned untouched.
func TimeAndTell[T any](label string, debug bool, logger *slog.Logger, fn func() (T, error)) (T, time.Duration, error) {
	start := time.Now()
	out, err := fn()
	elapsed := time.Since(start)

	if debug {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Debug("timed",
			"label", label,
			"elapsed_ms", float64(elapsed.Microseconds())/1000,
			"ok", err == nil,
		)
	}
	return out, elapsed, err
}
