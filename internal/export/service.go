package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
)

// Service turns the run log into XLSX workbooks.
type Service struct {
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

const (
	sheet     = "Runs"
	pageSize  = 500
	maxErrLen = 200
)

var headers = []string{
	"Started At",
	"Request ID",
	"File",
	"Status",
	"Candidate",
	"Total (ms)",
	"Pre-processing (ms)",
	"Transcription (ms)",
	"Extraction (ms)",
	"Output Path",
	"Error",
}

// RunsXLSX returns a workbook with one row per run, newest first.
// An empty status exports every run.
func (s *Service) RunsXLSX(ctx context.Context, status string) ([]byte, error) {
	start := time.Now()

	var runs []*entity.ParseRun
	for offset := 0; ; offset += pageSize {
		page, err := s.runs.List(ctx, repository.ListOptions{Status: status, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("query runs: %w", err)
		}
		runs = append(runs, page...)
		if len(page) < pageSize {
			break
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, r := range runs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.StartedAt.UTC().Format(time.RFC3339))
		write(2, r.RequestID)
		write(3, r.FileName)
		write(4, r.Status)
		write(5, candidateName(r))
		write(6, r.Times.Total.Milliseconds())
		write(7, r.Times.PreProcessing.Milliseconds())
		write(8, r.Times.Transcription.Milliseconds())
		write(9, r.Times.Extraction.Milliseconds())
		write(10, r.OutputPath)
		write(11, truncate(r.ErrorMessage, maxErrLen))
	}

	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "B", 38)
	_ = f.SetColWidth(sheet, "C", "C", 32)
	_ = f.SetColWidth(sheet, "D", "D", 12)
	_ = f.SetColWidth(sheet, "E", "E", 24)
	_ = f.SetColWidth(sheet, "F", "I", 16)
	_ = f.SetColWidth(sheet, "J", "J", 48)
	_ = f.SetColWidth(sheet, "K", "K", 60)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"status", status,
		"rows", len(runs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// candidateName reads the first name out of a stored ParseResponse.
func candidateName(r *entity.ParseRun) string {
	if len(r.Result) == 0 {
		return ""
	}
	var resp struct {
		ParserResults llm.ResumeFields `json:"ParserResults"`
	}
	if err := json.Unmarshal(r.Result, &resp); err != nil {
		return ""
	}
	names := resp.ParserResults.Name
	if len(names) == 0 || names[0] == llm.NoneValue {
		return ""
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
