package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/ocr"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
)

func sampleDoc(t *testing.T, name, body string) preprocess.Document {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return preprocess.Document{SourcePath: p, Path: p, FileName: name}
}

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ms", r.FormValue("timestamps"))
		assert.Equal(t, "true", r.FormValue("is_digital"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "cv.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(b))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"transcriberOutput": map[string]any{"fileText": "John Doe\nGo"},
		})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(HTTPConfig{Endpoint: srv.URL, IsDigital: "true"}, srv.Client(), nil)
	ctx := common.WithRequestID(context.Background(), "req-1")
	text, err := tr.Transcribe(ctx, sampleDoc(t, "cv.pdf", "%PDF-1.4"), constants.TimestampMilliseconds)
	require.NoError(t, err)
	assert.Equal(t, "John Doe\nGo", text)
}

func TestHTTPTranscriberOmitsIsDigitalByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["is_digital"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"transcriberOutput":{"fileText":"text"}}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(HTTPConfig{Endpoint: srv.URL}, srv.Client(), nil)
	_, err := tr.Transcribe(context.Background(), sampleDoc(t, "cv.pdf", "x"), constants.TimestampSeconds)
	require.NoError(t, err)
}

func TestHTTPTranscriberFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "model crashed", "transcriber returned 500: model crashed"},
		{"accepted is not success", http.StatusAccepted, `{"transcriberOutput":{"fileText":"x"}}`, "transcriber returned 202"},
		{"bad json", http.StatusOK, "<html>", "decode transcriber response"},
		{"empty text", http.StatusOK, `{"transcriberOutput":{"fileText":"  "}}`, ErrEmptyTranscript.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := NewHTTPTranscriber(HTTPConfig{Endpoint: srv.URL}, srv.Client(), nil)
			_, err := tr.Transcribe(context.Background(), sampleDoc(t, "cv.pdf", "x"), constants.TimestampSeconds)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPTranscriberUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := NewHTTPTranscriber(HTTPConfig{Endpoint: url}, nil, nil)
	_, err := tr.Transcribe(context.Background(), sampleDoc(t, "cv.pdf", "x"), constants.TimestampSeconds)
	assert.ErrorContains(t, err, "transcriber request")
}

func TestLocalTranscriber(t *testing.T) {
	ex := ocr.NewExtractor(ocr.Config{}, nil, nil)
	lt := NewLocalTranscriber(ex, nil)

	text, err := lt.Transcribe(context.Background(), sampleDoc(t, "cv.txt", "Jane Roe\n\n\n\nRust"), constants.TimestampSeconds)
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe\n\nRust", text)
}
