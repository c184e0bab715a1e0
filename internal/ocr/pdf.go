package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
)

// extractPDF reads the text layer and falls back to rasterize+OCR for scanned files.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	txt, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil {
		txt = Normalize(txt)
		if len([]rune(txt)) >= e.cfg.MinPDFTextChars {
			return Result{
				Text:     txt,
				Pages:    pages,
				Format:   constants.PDF,
				Method:   "pdf-text",
				Warnings: warns,
			}, nil
		}
		e.logger.Debug("ocr.pdf.text_layer_thin", "path", path, "chars", len([]rune(txt)))
	} else {
		e.logger.Warn("ocr.pdf.text_failed", "path", path, "error", err)
	}

	ocrTxt, ocrPages, ocrWarns, ocrErr := e.pdfToOCR(ctx, path)
	warns = append(warns, ocrWarns...)
	if ocrErr != nil {
		return Result{Format: constants.PDF, Warnings: warns}, ocrErr
	}
	return Result{
		Text:     Normalize(ocrTxt),
		Pages:    ocrPages,
		Format:   constants.PDF,
		Method:   "pdf-ocr",
		Language: e.cfg.Lang,
		Warnings: warns,
	}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (string, int, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("pdftotext: %w", err)
	}
	text := string(out)
	// pdftotext separates pages with a form feed
	pages := 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, []string, error) {
	tmpDir, err := os.MkdirTemp("", "rp-pages-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// page-1.png, page-2.png, ... (zero padded when there are many pages)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), warns, nil
}
