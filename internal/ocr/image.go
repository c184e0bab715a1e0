package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/joseph-ayodele/resume-parser/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return Result{Format: constants.IMAGE, Warnings: warns}, err
	}
	return Result{
		Text:     Normalize(txt),
		Pages:    1,
		Format:   constants.IMAGE,
		Method:   "image-ocr",
		Language: e.cfg.Lang,
		Warnings: warns,
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

func (e *Extractor) extractPlain(path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{Format: constants.TXT}, fmt.Errorf("read text file: %w", err)
	}
	return Result{
		Text:   Normalize(string(b)),
		Pages:  1,
		Format: constants.TXT,
		Method: "plain-text",
	}, nil
}
