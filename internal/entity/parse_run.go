package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ParseRun is one entry of the run log: a request, its outcome and its timings.
type ParseRun struct {
	ID              uuid.UUID       `json:"id"`
	RequestID       string          `json:"request_id"`
	FileName        string          `json:"file_name"`
	StoredPath      string          `json:"stored_path"`
	OutputPath      string          `json:"output_path,omitempty"`
	ContentHash     string          `json:"content_hash,omitempty"`
	TimestampFormat string          `json:"timestamp_format"`
	Status          string          `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Times           RunTimes        `json:"times"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}

// RunTimes is stored with millisecond precision.
type RunTimes struct {
	Total         time.Duration `json:"total"`
	PreProcessing time.Duration `json:"pre_processing"`
	Transcription time.Duration `json:"transcription"`
	Extraction    time.Duration `json:"extraction"`
}
