package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
// The model output is decoded, validated against the resume schema and, unless
// StrictSchema is set, sanitized and validated again before being unmarshalled.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ResumeFields, []byte, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	text := llm.TruncateText(req.Text, llm.MaxTextChars)
	c.log.Info("llm.extract.start",
		"req_id", rid,
		"task_id", common.TaskIDFromContext(ctx),
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len([]rune(text)),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(llm.ExtractRequest{Text: text, FileName: req.FileName}) +
				"\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(c.schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, httpErr := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ResumeFields{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ResumeFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ResumeFields{}, raw, errors.New("no choices in openai response")
	}

	content, err := llm.DecodePayload([]byte(cc.Choices[0].Message.Content))
	if err != nil {
		c.log.Error("llm.extract.payload_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ResumeFields{}, []byte(cc.Choices[0].Message.Content), err
	}

	content, err = c.conform(rid, content)
	if err != nil {
		return llm.ResumeFields{}, content, err
	}

	var out llm.ResumeFields
	if err := json.Unmarshal(content, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ResumeFields{}, content, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"names", len(out.Name),
		"experience", len(out.WorkExperience),
		"skills", len(out.Skills),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// conform validates strictly first, then falls back to the sanitizer.
func (c *Client) conform(rid string, content []byte) ([]byte, error) {
	err := c.validator.Validate(content)
	if err == nil {
		return content, nil
	}
	if c.cfg.StrictSchema {
		c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err)
		return content, fmt.Errorf("schema validation failed: %w", err)
	}

	cleaned, notes, sErr := llm.SanitizeResumeJSON(content, c.log)
	if sErr != nil {
		c.log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", sErr)
		return content, fmt.Errorf("sanitize failed: %w", sErr)
	}
	if vErr := c.validator.Validate(cleaned); vErr != nil {
		c.log.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", vErr)
		return cleaned, fmt.Errorf("schema validation failed: %w", vErr)
	}
	c.log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "changes", len(notes))
	return cleaned, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
