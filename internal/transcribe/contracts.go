package transcribe

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
)

// ErrEmptyTranscript is returned when a backend answers successfully but with no text.
var ErrEmptyTranscript = errors.New("transcriber returned no text")

// Transcriber turns a prepared document into raw text.
type Transcriber interface {
	Transcribe(ctx context.Context, doc preprocess.Document, format constants.TimestampFormat) (string, error)
}
