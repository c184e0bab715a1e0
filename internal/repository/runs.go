package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

const runsTable = "parse_runs"

var runColumns = []string{
	"id", "request_id", "file_name", "stored_path", "output_path", "content_hash",
	"timestamp_format", "status", "error_message", "result_json",
	"total_ms", "pre_processing_ms", "transcription_ms", "extraction_ms",
	"started_at", "finished_at",
}

// StartRun describes a request as it enters the pipeline.
type StartRun struct {
	RequestID       string
	FileName        string
	StoredPath      string
	TimestampFormat string
}

// RunSuccess is what a successful request leaves behind.
type RunSuccess struct {
	ContentHash string
	OutputPath  string
	Result      json.RawMessage
	Times       entity.RunTimes
}

type ListOptions struct {
	Status string // empty = any
	Limit  int    // 0 = 50
	Offset int
}

type RunRepository interface {
	Start(ctx context.Context, in StartRun) (*entity.ParseRun, error)
	FinishSuccess(ctx context.Context, id uuid.UUID, out RunSuccess) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error)
	List(ctx context.Context, opts ListOptions) ([]*entity.ParseRun, error)
}

type runRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, logger: logger}
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *runRepo) Start(ctx context.Context, in StartRun) (*entity.ParseRun, error) {
	run := &entity.ParseRun{
		ID:              uuid.New(),
		RequestID:       in.RequestID,
		FileName:        in.FileName,
		StoredPath:      in.StoredPath,
		TimestampFormat: in.TimestampFormat,
		Status:          string(constants.RunStatusRunning),
		StartedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	query, args := r.builder().Insert(runsTable).
		Columns("id", "request_id", "file_name", "stored_path", "timestamp_format", "status", "started_at").
		Values(run.ID.String(), run.RequestID, run.FileName, run.StoredPath, run.TimestampFormat, run.Status, run.StartedAt.UnixMilli()).
		Query()
	if err := r.db.Driver.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("parse_run.start.failed", "req_id", in.RequestID, "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "start parse run", err)
	}
	r.logger.Debug("parse_run.started", "run_id", run.ID, "req_id", in.RequestID, "file", in.FileName)
	return run, nil
}

func (r *runRepo) FinishSuccess(ctx context.Context, id uuid.UUID, out RunSuccess) error {
	query, args := r.builder().Update(runsTable).
		Set("status", string(constants.RunStatusSucceeded)).
		Set("content_hash", out.ContentHash).
		Set("output_path", out.OutputPath).
		Set("result_json", string(out.Result)).
		Set("total_ms", out.Times.Total.Milliseconds()).
		Set("pre_processing_ms", out.Times.PreProcessing.Milliseconds()).
		Set("transcription_ms", out.Times.Transcription.Milliseconds()).
		Set("extraction_ms", out.Times.Extraction.Milliseconds()).
		Set("finished_at", time.Now().UTC().UnixMilli()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.update(ctx, id, query, args); err != nil {
		r.logger.Error("parse_run.finish.failed", "run_id", id, "status", constants.RunStatusSucceeded, "error", err)
		return err
	}
	r.logger.Info("parse_run.finished", "run_id", id, "status", constants.RunStatusSucceeded,
		"total_ms", out.Times.Total.Milliseconds())
	return nil
}

func (r *runRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	query, args := r.builder().Update(runsTable).
		Set("status", string(constants.RunStatusFailed)).
		Set("error_message", message).
		Set("finished_at", time.Now().UTC().UnixMilli()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.update(ctx, id, query, args); err != nil {
		r.logger.Error("parse_run.finish.failed", "run_id", id, "status", constants.RunStatusFailed, "error", err)
		return err
	}
	r.logger.Warn("parse_run.finished", "run_id", id, "status", constants.RunStatusFailed, "error", message)
	return nil
}

func (r *runRepo) update(ctx context.Context, id uuid.UUID, query string, args []any) error {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, query, args, &res); err != nil {
		return common.NewAppError(common.CodeDatabase, "update parse run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "update parse run", err)
	}
	if n == 0 {
		return common.NewAppError(common.CodeNotFound, fmt.Sprintf("parse run %s", id), common.ErrNotFound)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error) {
	b := r.builder()
	query, args := b.Select(runColumns...).
		From(b.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	runs, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, fmt.Sprintf("parse run %s", id), common.ErrNotFound)
	}
	return runs[0], nil
}

// List returns runs newest first.
func (r *runRepo) List(ctx context.Context, opts ListOptions) ([]*entity.ParseRun, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	b := r.builder()
	sel := b.Select(runColumns...).From(b.Table(runsTable))
	if opts.Status != "" {
		sel = sel.Where(entsql.EQ("status", opts.Status))
	}
	query, args := sel.
		OrderBy(entsql.Desc("started_at"), entsql.Desc("id")).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Query()
	return r.query(ctx, query, args)
}

func (r *runRepo) query(ctx context.Context, query string, args []any) ([]*entity.ParseRun, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("parse_run.query.failed", "error", err)
		return nil, common.NewAppError(common.CodeDatabase, "query parse runs", err)
	}
	defer rows.Close()

	var out []*entity.ParseRun
	for rows.Next() {
		run, err := scanRun(&rows)
		if err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan parse run", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "iterate parse runs", err)
	}
	return out, nil
}

func scanRun(rows *entsql.Rows) (*entity.ParseRun, error) {
	var (
		run                                entity.ParseRun
		id, result                         string
		totalMS, preMS, transMS, extractMS int64
		startedAt, finishedAt              int64
	)
	err := rows.Scan(
		&id, &run.RequestID, &run.FileName, &run.StoredPath, &run.OutputPath, &run.ContentHash,
		&run.TimestampFormat, &run.Status, &run.ErrorMessage, &result,
		&totalMS, &preMS, &transMS, &extractMS,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if result != "" {
		run.Result = json.RawMessage(result)
	}
	run.Times = entity.RunTimes{
		Total:         time.Duration(totalMS) * time.Millisecond,
		PreProcessing: time.Duration(preMS) * time.Millisecond,
		Transcription: time.Duration(transMS) * time.Millisecond,
		Extraction:    time.Duration(extractMS) * time.Millisecond,
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt > 0 {
		t := time.UnixMilli(finishedAt).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}
