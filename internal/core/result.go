package core

import (
	"fmt"
	"time"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
)

// ProcessTimes is the per-stage and end-to-end wall-clock time of one request.
type ProcessTimes struct {
	Total         time.Duration
	PreProcessing time.Duration
	Transcription time.Duration
	Extraction    time.Duration
}

// StageSum adds up the three stage durations. Total is never smaller.
func (p ProcessTimes) StageSum() time.Duration {
	return p.PreProcessing + p.Transcription + p.Extraction
}

// RenderedTimes is ProcessTimes converted to the caller's timestamp format.
// Values are float64 for s and ms, and "HH:MM:SS.mmm" strings for hms.
type RenderedTimes struct {
	Total         any `json:"total"`
	PreProcessing any `json:"pre_processing"`
	Transcription any `json:"transcription"`
	Extraction    any `json:"extraction"`
}

func (p ProcessTimes) Render(format constants.TimestampFormat) RenderedTimes {
	return RenderedTimes{
		Total:         FormatDuration(p.Total, format),
		PreProcessing: FormatDuration(p.PreProcessing, format),
		Transcription: FormatDuration(p.Transcription, format),
		Extraction:    FormatDuration(p.Extraction, format),
	}
}

// FormatDuration renders d in the given format; unknown formats fall back to seconds.
func FormatDuration(d time.Duration, format constants.TimestampFormat) any {
	switch format {
	case constants.TimestampMilliseconds:
		return float64(d.Microseconds()) / 1e3
	case constants.TimestampHMS:
		ms := d.Milliseconds()
		h := ms / 3_600_000
		m := (ms / 60_000) % 60
		s := (ms / 1000) % 60
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
	default:
		return float64(d.Microseconds()) / 1e6
	}
}

// Result is produced once per successful Process call and not modified afterwards.
type Result struct {
	TaskID      string
	InputRef    string
	FileName    string
	ContentHash string
	Format      constants.TimestampFormat
	Fields      llm.ResumeFields
	RawFields   []byte
	TextChars   int
	Times       ProcessTimes
}

// ParseResponse is the wire shape returned to API callers.
type ParseResponse struct {
	ParserResults llm.ResumeFields `json:"ParserResults"`
	TimeStamps    string           `json:"TimeStamps"`
	ProcessTimes  RenderedTimes    `json:"ProcessTimes"`
}

func (r *Result) Response() ParseResponse {
	return ParseResponse{
		ParserResults: r.Fields,
		TimeStamps:    string(r.Format),
		ProcessTimes:  r.Times.Render(r.Format),
	}
}
