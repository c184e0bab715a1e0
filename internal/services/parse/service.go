package parse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/core"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
	"github.com/joseph-ayodele/resume-parser/internal/storage"
)

// Service stores uploads, runs them through the pipeline and keeps the run log.
type Service struct {
	proc    core.Service
	store   *storage.Store
	runs    repository.RunRepository
	logger  *slog.Logger
	timeout time.Duration
}

type Option func(*Service)

// WithProcessTimeout bounds each pipeline run. 0 means no bound.
func WithProcessTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService wires the parse use case. runs may be nil, in which case nothing is recorded.
func NewService(proc core.Service, store *storage.Store, runs repository.RunRepository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{proc: proc, store: store, runs: runs, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UploadRequest represents a document received over the network.
type UploadRequest struct {
	FileName   string
	Body       io.Reader
	Timestamps string
}

// Outcome is what callers get back for a successful parse.
type Outcome struct {
	RunID      uuid.UUID
	Result     *core.Result
	Response   core.ParseResponse
	OutputPath string
}

// ParseUpload stores the upload and parses the stored copy.
func (s *Service) ParseUpload(ctx context.Context, req UploadRequest) (*Outcome, error) {
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		return nil, common.InvalidInputf("file name is required")
	}
	if req.Body == nil {
		return nil, common.InvalidInputf("file is required")
	}
	timestamps, err := timestampFormat(req.Timestamps)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.SaveUpload(name, req.Body)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, common.InvalidInputf("%v", err)
		}
		s.logger.Error("parse.upload.store_failed", "file", name, "error", err)
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return s.run(ctx, stored.OriginalName, stored.Path, timestamps)
}

// ParseFile parses a document already on disk, e.g. one dropped in the inbox.
func (s *Service) ParseFile(ctx context.Context, path, timestamps string) (*Outcome, error) {
	format, err := timestampFormat(timestamps)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, filepath.Base(path), path, format)
}

// timestampFormat checks the requested format up front so a bad one never
// leaves a stored file or a run row behind. Blank selects the default.
func timestampFormat(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return string(constants.DefaultTimestampFormat), nil
	}
	f, err := constants.ParseTimestampFormat(s)
	if err != nil {
		return "", common.InvalidInputf("%v", err)
	}
	return string(f), nil
}

func (s *Service) run(ctx context.Context, fileName, path, timestamps string) (*Outcome, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	logger := s.logger.With("req_id", rid)

	var runID uuid.UUID
	if s.runs != nil {
		run, err := s.runs.Start(ctx, repository.StartRun{
			RequestID:       rid,
			FileName:        fileName,
			StoredPath:      path,
			TimestampFormat: timestamps,
		})
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}

	pctx, cancel := common.WithTimeout(ctx, s.timeout)
	res, err := s.proc.Process(pctx, path, timestamps)
	cancel()
	if err != nil {
		s.finishFailure(ctx, runID, err, logger)
		return nil, err
	}

	out := &Outcome{RunID: runID, Result: res, Response: res.Response()}
	body, err := json.MarshalIndent(out.Response, "", "  ")
	if err != nil {
		s.finishFailure(ctx, runID, err, logger)
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if s.store != nil {
		if out.OutputPath, err = s.store.SaveOutput(path, body); err != nil {
			// the parse itself succeeded, keep going
			logger.Warn("parse.output.write_failed", "error", err)
		}
	}

	if s.runs != nil {
		err := s.runs.FinishSuccess(ctx, runID, repository.RunSuccess{
			ContentHash: res.ContentHash,
			OutputPath:  out.OutputPath,
			Result:      body,
			Times: entity.RunTimes{
				Total:         res.Times.Total,
				PreProcessing: res.Times.PreProcessing,
				Transcription: res.Times.Transcription,
				Extraction:    res.Times.Extraction,
			},
		})
		if err != nil {
			logger.Error("parse.run.record_failed", "run_id", runID, "error", err)
		}
	}

	logger.Info("parse.ok", "run_id", runID, "file", fileName, "task_id", res.TaskID,
		"total_ms", res.Times.Total.Milliseconds())
	return out, nil
}

func (s *Service) finishFailure(ctx context.Context, runID uuid.UUID, cause error, logger *slog.Logger) {
	if s.runs == nil {
		return
	}
	// record even when the request context is already cancelled
	ctx = context.WithoutCancel(ctx)
	if err := s.runs.FinishFailure(ctx, runID, cause.Error()); err != nil {
		logger.Error("parse.run.record_failed", "run_id", runID, "error", err)
	}
}

// GetRun returns one run log entry.
func (s *Service) GetRun(ctx context.Context, id string) (*entity.ParseRun, error) {
	runID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, common.InvalidInputf("run id must be a UUID")
	}
	if s.runs == nil {
		return nil, common.NewAppError(common.CodeNotFound, "run log disabled", common.ErrNotFound)
	}
	return s.runs.GetByID(ctx, runID)
}

// ListRuns returns run log entries, newest first.
func (s *Service) ListRuns(ctx context.Context, opts repository.ListOptions) ([]*entity.ParseRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, common.InvalidInputf("limit and offset must not be negative")
	}
	return s.runs.List(ctx, opts)
}
