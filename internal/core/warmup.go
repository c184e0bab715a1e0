package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/resume-parser/constants"
)

// Warmup runs one request through svc with a bundled sample so a missing
// transcriber or LLM endpoint shows up at startup instead of on first traffic.
// Errors match ErrWarmup.
func Warmup(ctx context.Context, svc Service, sample []byte, sampleName string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	dir, err := os.MkdirTemp("", "resume-parser-warmup-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWarmup, err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, sampleName)
	if err := os.WriteFile(path, sample, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write sample: %w", ErrWarmup, err)
	}

	logger.Info("warmup.start", "sample", sampleName, "bytes", len(sample))
	res, err := svc.Process(ctx, path, string(constants.DefaultTimestampFormat))
	if err != nil {
		logger.Error("warmup.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrWarmup, err)
	}
	logger.Info("warmup.ok",
		"elapsed_ms", time.Since(start).Milliseconds(),
		"transcription_ms", res.Times.Transcription.Milliseconds(),
		"extraction_ms", res.Times.Extraction.Milliseconds(),
	)
	return res, nil
}
