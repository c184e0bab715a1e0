// Package app wires configuration into a ready-to-serve pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/resume-parser/assets"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/core"
	"github.com/joseph-ayodele/resume-parser/internal/export"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/llm/openai"
	"github.com/joseph-ayodele/resume-parser/internal/ocr"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
	"github.com/joseph-ayodele/resume-parser/internal/services/parse"
	"github.com/joseph-ayodele/resume-parser/internal/storage"
	"github.com/joseph-ayodele/resume-parser/internal/transcribe"
)

// NewLogger builds the process logger: JSON unless LOG_FORMAT=text, DEBUG level when DEBUG=true.
func NewLogger(cfg common.PipelineConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Debug {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// App holds every long-lived component. Close releases them in reverse order.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Runs      repository.RunRepository
	Pool      *core.Pool
	Processor *core.Processor
	Store     *storage.Store
	Parser    *parse.Service
	Exporter  *export.Service
}

// Options tweak Build for one-shot tools.
type Options struct {
	// NoRunLog skips the database entirely.
	NoRunLog bool
	// Extractor replaces the OpenAI client.
	Extractor llm.FieldExtractor
	// Transcriber replaces the configured backend.
	Transcriber transcribe.Transcriber
}

func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	if !opts.NoRunLog {
		db, err := OpenDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Runs = repository.NewRunRepository(db, logger)
		a.Exporter = export.NewService(a.Runs, logger)
	}

	store, err := storage.New(cfg.Storage.Dir, cfg.Server.MaxUploadSize, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = store

	runner := ocr.ExecRunner{Logger: logger}
	pre := preprocess.New(preprocess.Config{
		ConvertCommand: cfg.Converter.Command,
		WorkDir:        store.ConvertedDir(),
		MaxSize:        cfg.Server.MaxUploadSize,
	}, runner, logger)

	tr := opts.Transcriber
	if tr == nil {
		tr = newTranscriber(cfg, runner, logger)
	}

	ex := opts.Extractor
	if ex == nil {
		client, err := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("openai client: %w", err)
		}
		ex = client
	}

	a.Pool = core.NewPool(logger,
		core.WithWorkers(cfg.Pipeline.Workers),
		core.WithQueueSize(cfg.Pipeline.QueueSize),
	)
	a.Processor = core.NewProcessor(logger, a.Pool, pre, tr, ex, cfg.Pipeline.Debug)
	a.Parser = parse.NewService(a.Processor, store, a.Runs, logger,
		parse.WithProcessTimeout(cfg.Pipeline.ProcessTimeout))
	return a, nil
}

func newTranscriber(cfg *common.Config, runner ocr.Runner, logger *slog.Logger) transcribe.Transcriber {
	if cfg.Transcriber.Backend == "local" {
		ext := ocr.NewExtractor(ocr.Config{
			Pdftotext:   cfg.OCR.Pdftotext,
			Pdftoppm:    cfg.OCR.Pdftoppm,
			Tesseract:   cfg.OCR.Tesseract,
			Lang:        cfg.OCR.Lang,
			DPI:         cfg.OCR.DPI,
			MaxPages:    cfg.OCR.MaxPages,
			TessdataDir: cfg.OCR.TessdataDir,
		}, runner, logger)
		return transcribe.NewLocalTranscriber(ext, logger)
	}
	return transcribe.NewHTTPTranscriber(transcribe.HTTPConfig{
		Endpoint:  cfg.Transcriber.Endpoint,
		Timeout:   cfg.Transcriber.Timeout,
		IsDigital: cfg.Transcriber.IsDigital,
	}, nil, logger)
}

// OpenDB opens the run log database, checks it and applies the schema.
func OpenDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Warmup runs the bundled sample through the pipeline once.
// It is bounded by the process timeout. Failures are logged and ignored unless WARMUP_STRICT is set.
func (a *App) Warmup(ctx context.Context) error {
	if !a.Config.Pipeline.WarmupEnable {
		a.Logger.Info("warmup.skipped")
		return nil
	}
	ctx, cancel := common.WithTimeout(ctx, a.Config.Pipeline.ProcessTimeout)
	defer cancel()
	_, err := core.Warmup(ctx, a.Processor, assets.SamplePDF, assets.SampleName, a.Logger)
	if err == nil {
		return nil
	}
	if a.Config.Pipeline.WarmupStrict || errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Warn("warmup.failed.continuing", "error", err)
	return nil
}

// Close drains the worker pool and closes the database.
func (a *App) Close(ctx context.Context) {
	if a.Pool != nil {
		a.Pool.Shutdown(ctx)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
