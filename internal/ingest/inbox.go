package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/services/parse"
)

// Parser is the slice of the parse service the inbox needs.
type Parser interface {
	ParseFile(ctx context.Context, path, timestamps string) (*parse.Outcome, error)
}

type InboxConfig struct {
	Dir        string
	Timestamps string
	Debounce   time.Duration
}

// Inbox parses documents dropped into a directory, one at a time.
type Inbox struct {
	cfg    InboxConfig
	parser Parser
	logger *slog.Logger
	seen   map[string]time.Time
}

func NewInbox(cfg InboxConfig, parser Parser, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Inbox{cfg: cfg, parser: parser, logger: logger, seen: map[string]time.Time{}}
}

// Run blocks until ctx is done. Files present at startup are parsed too.
func (i *Inbox) Run(ctx context.Context) error {
	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{i.cfg.Dir},
		InitialScan: true,
		Debounce:    i.cfg.Debounce,
	}, i.logger)
	if err != nil {
		return err
	}
	i.logger.Info("inbox.start", "dir", i.cfg.Dir)

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("inbox.stop")
			return nil
		case err, ok := <-errs:
			if ok {
				i.logger.Warn("inbox.watch_error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				return nil
			}
			i.handle(ctx, path)
		}
	}
}

func (i *Inbox) handle(ctx context.Context, path string) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() || fi.Size() == 0 {
		return
	}
	// a write burst on an already parsed file is not a new document
	if mod, ok := i.seen[path]; ok && mod.Equal(fi.ModTime()) {
		return
	}
	i.seen[path] = fi.ModTime()

	out, err := i.parser.ParseFile(ctx, path, i.cfg.Timestamps)
	switch {
	case err == nil:
		i.logger.Info("inbox.parsed", "path", path, "run_id", out.RunID, "output", out.OutputPath)
	case errors.Is(err, common.ErrInvalidInput):
		i.logger.Warn("inbox.skipped", "path", path, "error", err)
	default:
		i.logger.Error("inbox.failed", "path", path, "error", err)
	}
}
