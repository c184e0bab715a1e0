package transcribe

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/ocr"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
)

// LocalTranscriber reads text with the OCR tools installed on the host.
type LocalTranscriber struct {
	extractor *ocr.Extractor
	logger    *slog.Logger
}

func NewLocalTranscriber(extractor *ocr.Extractor, logger *slog.Logger) *LocalTranscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalTranscriber{extractor: extractor, logger: logger}
}

// Transcribe ignores the timestamp format; local tools do not report timings.
func (l *LocalTranscriber) Transcribe(ctx context.Context, doc preprocess.Document, _ constants.TimestampFormat) (string, error) {
	res, err := l.extractor.Extract(ctx, doc.Path)
	if err != nil {
		return "", err
	}
	if len(res.Warnings) > 0 {
		l.logger.Warn("transcribe.local.warnings", "file", doc.FileName, "warnings", res.Warnings)
	}
	return res.Text, nil
}
