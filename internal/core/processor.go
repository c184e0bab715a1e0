package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
	"github.com/joseph-ayodele/resume-parser/internal/transcribe"
)

// Service is what the transports and the warmup driver depend on.
type Service interface {
	Process(ctx context.Context, inputRef, format string) (*Result, error)
}

// Preprocessor prepares the input file for transcription.
type Preprocessor interface {
	Prepare(ctx context.Context, path string) (preprocess.Document, error)
}

// Processor runs pre-processing, transcription and extraction for one document.
// Each stage runs on the shared worker pool; the calling goroutine only dispatches
// and waits. Stages never overlap within a request.
type Processor struct {
	logger      *slog.Logger
	pool        *Pool
	pre         Preprocessor
	transcriber transcribe.Transcriber
	extractor   llm.FieldExtractor
	debug       bool
}

func NewProcessor(
	logger *slog.Logger,
	pool *Pool,
	pre Preprocessor,
	transcriber transcribe.Transcriber,
	extractor llm.FieldExtractor,
	debug bool,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:      logger,
		pool:        pool,
		pre:         pre,
		transcriber: transcriber,
		extractor:   extractor,
		debug:       debug,
	}
}

// Process runs the pipeline for the file at inputRef. Input problems are reported
// before any stage starts and match common.ErrInvalidInput. A failing stage aborts
// the request with a *StageError; no partial result is returned.
func (p *Processor) Process(ctx context.Context, inputRef, format string) (*Result, error) {
	tf, path, err := validateInput(inputRef, format)
	if err != nil {
		p.logger.Warn("processor.input.invalid", "input", inputRef, "error", err)
		return nil, err
	}

	task := newTask(path, tf)
	ctx = common.WithTaskID(ctx, task.ID)
	logger := common.LoggerFromContext(ctx, p.logger).With("task_id", task.ID)
	logger.Debug("processor.start", "input", path, "timestamps", tf)

	start := time.Now()
	for _, stage := range constants.Stages {
		if err := p.runStage(ctx, task, stage, logger); err != nil {
			logger.Error("processor.stage.failed", "stage", stage, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
	}
	total := time.Since(start)

	timings := task.Timings()
	res := &Result{
		TaskID:      task.ID,
		InputRef:    path,
		FileName:    task.doc.FileName,
		ContentHash: task.doc.ContentHash,
		Format:      tf,
		Fields:      task.fields,
		RawFields:   task.raw,
		TextChars:   len([]rune(task.text)),
		Times: ProcessTimes{
			Total:         total,
			PreProcessing: timings.PreProcessing,
			Transcription: timings.Transcription,
			Extraction:    timings.Extraction,
		},
	}
	logger.Info("processor.done",
		"file", res.FileName,
		"total_ms", total.Milliseconds(),
		"pre_processing_ms", timings.PreProcessing.Milliseconds(),
		"transcription_ms", timings.Transcription.Milliseconds(),
		"extraction_ms", timings.Extraction.Milliseconds(),
	)
	return res, nil
}

// runStage hands one stage to the pool and blocks until its signal is set.
func (p *Processor) runStage(ctx context.Context, task *Task, stage constants.Stage, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sig := task.signal(stage)
	run := p.stageFunc(stage)

	job := func() {
		// runs last: the orchestrator must wake up whatever happened
		defer sig.Set()
		defer func() {
			if r := recover(); r != nil {
				task.fail(&StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)})
			}
		}()
		if err := ctx.Err(); err != nil {
			task.fail(err)
			return
		}
		_, elapsed, err := TimeAndTell(string(stage), p.debug, logger, func() (struct{}, error) {
			return struct{}{}, run(ctx, task)
		})
		task.setTiming(stage, elapsed)
		if err != nil {
			task.fail(&StageError{Stage: stage, Err: err})
		}
	}

	if err := p.pool.Submit(ctx, job); err != nil {
		return err
	}
	if err := sig.Wait(ctx); err != nil {
		return err
	}
	return task.Err()
}

type stageFunc func(ctx context.Context, task *Task) error

func (p *Processor) stageFunc(stage constants.Stage) stageFunc {
	switch stage {
	case constants.StagePreProcessing:
		return p.preProcess
	case constants.StageTranscription:
		return p.transcribe
	default:
		return p.extract
	}
}

func (p *Processor) preProcess(ctx context.Context, task *Task) error {
	doc, err := p.pre.Prepare(ctx, task.InputRef)
	if err != nil {
		return err
	}
	task.doc = doc
	return nil
}

func (p *Processor) transcribe(ctx context.Context, task *Task) error {
	text, err := p.transcriber.Transcribe(ctx, task.doc, task.Format)
	if err != nil {
		return err
	}
	task.text = text
	return nil
}

func (p *Processor) extract(ctx context.Context, task *Task) error {
	req := llm.ExtractRequest{
		Text:     llm.TruncateText(task.text, llm.MaxTextChars),
		FileName: task.doc.FileName,
	}
	fields, raw, err := p.extractor.ExtractFields(ctx, req)
	if err != nil {
		return err
	}
	task.fields = fields
	task.raw = raw
	return nil
}

// validateInput checks everything that can be known before a worker starts.
func validateInput(inputRef, format string) (constants.TimestampFormat, string, error) {
	if strings.TrimSpace(format) == "" {
		format = string(constants.DefaultTimestampFormat)
	}
	tf, err := constants.ParseTimestampFormat(format)
	if err != nil {
		return "", "", common.InvalidInputf("%v", err)
	}

	if strings.TrimSpace(inputRef) == "" {
		return "", "", common.InvalidInputf("input reference is empty")
	}
	path, err := filepath.Abs(inputRef)
	if err != nil {
		return "", "", common.InvalidInputf("resolve %q: %v", inputRef, err)
	}
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return "", "", common.InvalidInputf("unsupported file type %q", filepath.Ext(path))
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", "", common.InvalidInputf("%s does not exist", path)
	case err != nil:
		return "", "", common.InvalidInputf("stat %s: %v", path, err)
	case info.IsDir():
		return "", "", common.InvalidInputf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", "", common.InvalidInputf("%s is not readable: %v", path, err)
	}
	_ = f.Close()
	return tf, path, nil
}
