package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
)

// StageTimings holds the elapsed time of each stage that has finished.
type StageTimings struct {
	PreProcessing time.Duration
	Transcription time.Duration
	Extraction    time.Duration
}

// Sum adds up the stage durations.
func (s StageTimings) Sum() time.Duration {
	return s.PreProcessing + s.Transcription + s.Extraction
}

// Task is the record of one request moving through the pipeline. It is never shared
// between requests. Stage outputs are written by exactly one worker before that
// stage's signal is set, and read by later stages only after waiting on it.
type Task struct {
	ID       string
	InputRef string
	Format   constants.TimestampFormat

	preProcessed *Signal
	transcribed  *Signal
	extracted    *Signal

	doc    preprocess.Document
	text   string
	fields llm.ResumeFields
	raw    []byte

	mu      sync.Mutex
	timings StageTimings
	err     error
}

func newTask(inputRef string, format constants.TimestampFormat) *Task {
	return &Task{
		ID:           uuid.New().String(),
		InputRef:     inputRef,
		Format:       format,
		preProcessed: NewSignal(),
		transcribed:  NewSignal(),
		extracted:    NewSignal(),
	}
}

func (t *Task) signal(stage constants.Stage) *Signal {
	switch stage {
	case constants.StagePreProcessing:
		return t.preProcessed
	case constants.StageTranscription:
		return t.transcribed
	default:
		return t.extracted
	}
}

func (t *Task) setTiming(stage constants.Stage, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch stage {
	case constants.StagePreProcessing:
		t.timings.PreProcessing = d
	case constants.StageTranscription:
		t.timings.Transcription = d
	case constants.StageExtraction:
		t.timings.Extraction = d
	}
}

// fail keeps the first error only.
func (t *Task) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// Err returns the failure recorded by a stage worker, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Timings returns a snapshot of the recorded stage timings.
func (t *Task) Timings() StageTimings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timings
}
