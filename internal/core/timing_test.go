package core

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/constants"
)

func TestTimeAndTell(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	out, elapsed, err := TimeAndTell("transcription", true, logger, func() (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "text", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "text", out)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	assert.Contains(t, buf.String(), "label=transcription")
}

func TestTimeAndTellQuietAndPropagatesErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	boom := errors.New("boom")

	_, _, err := TimeAndTell("extraction", false, logger, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, buf.String())
}

func TestFormatDuration(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond

	assert.Equal(t, "01:02:03.456", FormatDuration(d, constants.TimestampHMS))
	assert.Equal(t, "00:00:00.000", FormatDuration(0, constants.TimestampHMS))
	assert.InDelta(t, 3723.456, FormatDuration(d, constants.TimestampSeconds), 1e-9)
	assert.InDelta(t, 1.5, FormatDuration(1500*time.Microsecond, constants.TimestampMilliseconds), 1e-9)
	assert.InDelta(t, 2.5, FormatDuration(2500*time.Millisecond, "bogus"), 1e-9)
}

func TestRenderProcessTimes(t *testing.T) {
	pt := ProcessTimes{
		Total:         4 * time.Second,
		PreProcessing: time.Second,
		Transcription: 2 * time.Second,
		Extraction:    500 * time.Millisecond,
	}
	assert.Equal(t, 3500*time.Millisecond, pt.StageSum())

	r := pt.Render(constants.TimestampMilliseconds)
	assert.Equal(t, 4000.0, r.Total)
	assert.Equal(t, 500.0, r.Extraction)

	h := pt.Render(constants.TimestampHMS)
	assert.Equal(t, "00:00:02.000", h.Transcription)
}
