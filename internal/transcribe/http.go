package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/preprocess"
)

type HTTPConfig struct {
	Endpoint  string
	Timeout   time.Duration
	IsDigital string // forwarded as is_digital when set ("true" / "false")
}

// HTTPTranscriber posts documents to a remote transcription service.
type HTTPTranscriber struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPTranscriber(cfg HTTPConfig, client *http.Client, logger *slog.Logger) *HTTPTranscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPTranscriber{cfg: cfg, client: client, logger: logger}
}

type transcriberResponse struct {
	TranscriberOutput struct {
		FileText string `json:"fileText"`
	} `json:"transcriberOutput"`
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, doc preprocess.Document, format constants.TimestampFormat) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	body, contentType, err := t.encode(doc, format)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build transcriber request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", rid)

	t.logger.Debug("transcribe.http.request", "req_id", rid, "file", doc.FileName, "bytes", body.Len())
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("transcribe.http.error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("transcriber request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcriber response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := raw
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		t.logger.Error("transcribe.http.status", "req_id", rid, "status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("transcriber returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out transcriberResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode transcriber response: %w", err)
	}
	text := strings.TrimSpace(out.TranscriberOutput.FileText)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	t.logger.Info("transcribe.http.ok",
		"req_id", rid,
		"task_id", common.TaskIDFromContext(ctx),
		"file", doc.FileName,
		"chars", len([]rune(text)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// encode builds the multipart form: file, timestamps and optionally is_digital.
func (t *HTTPTranscriber) encode(doc preprocess.Document, format constants.TimestampFormat) (*bytes.Buffer, string, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", doc.FileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy document: %w", err)
	}
	if err := mw.WriteField("timestamps", string(format)); err != nil {
		return nil, "", err
	}
	if t.cfg.IsDigital != "" {
		if err := mw.WriteField("is_digital", t.cfg.IsDigital); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
