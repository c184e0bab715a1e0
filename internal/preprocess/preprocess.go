package preprocess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/google/shlex"
	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/ocr"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTooLarge          = errors.New("document too large")
	ErrEmptyDocument     = errors.New("document is empty")
)

type Config struct {
	// ConvertCommand turns doc/docx into pdf. Placeholders: {input}, {outdir}.
	ConvertCommand string
	// WorkDir keeps converted files, one sub-directory per content hash.
	WorkDir string
	MaxSize int64 // 0 = no limit
}

// Preprocessor validates a document, fingerprints it and converts word files to PDF.
type Preprocessor struct {
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger

	// convert collapses concurrent conversions of the same output.
	convert singleflight.Group
}

func New(cfg Config, runner ocr.Runner, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.ExecRunner{Logger: logger}
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "resume-parser-converted")
	}
	return &Preprocessor{cfg: cfg, runner: runner, logger: logger}
}

// Prepare returns the document transcription should read.
func (p *Preprocessor) Prepare(ctx context.Context, path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Document{}, fmt.Errorf("stat document: %w", err)
	}
	if info.Size() == 0 {
		return Document{}, fmt.Errorf("%s: %w", filepath.Base(abs), ErrEmptyDocument)
	}
	if p.cfg.MaxSize > 0 && info.Size() > p.cfg.MaxSize {
		return Document{}, fmt.Errorf("%s is %s, limit %s: %w", filepath.Base(abs),
			datasize.ByteSize(info.Size()).HR(), datasize.ByteSize(p.cfg.MaxSize).HR(), ErrTooLarge)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		return Document{}, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	hash, err := hashFile(abs)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		SourcePath:  abs,
		Path:        abs,
		FileName:    filepath.Base(abs),
		Ext:         ext,
		Format:      format,
		ContentHash: hash,
		Size:        info.Size(),
	}
	if format != constants.DOC {
		return doc, nil
	}

	out, err := p.convertToPDF(ctx, abs, hash)
	if err != nil {
		return Document{}, err
	}
	doc.Path = out
	doc.Ext = "pdf"
	doc.Format = constants.PDF
	doc.Converted = true
	return doc, nil
}

// convertToPDF runs the converter once per content hash and reuses its output afterwards.
// The converter writes into a private temp dir; only a finished file is renamed into the cache.
func (p *Preprocessor) convertToPDF(ctx context.Context, in, hash string) (string, error) {
	outDir := filepath.Join(p.cfg.WorkDir, hash[:16])
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".pdf"
	out := filepath.Join(outDir, name)
	if cached(out) {
		p.logger.Debug("preprocess.convert.cached", "out", out)
		return out, nil
	}

	v, err, shared := p.convert.Do(out, func() (any, error) {
		if cached(out) {
			return out, nil
		}
		if err := os.MkdirAll(p.cfg.WorkDir, 0o755); err != nil {
			return "", fmt.Errorf("create convert dir: %w", err)
		}
		tmpDir, err := os.MkdirTemp(p.cfg.WorkDir, ".tmp-"+hash[:16]+"-*")
		if err != nil {
			return "", fmt.Errorf("create convert temp dir: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		cmd, args, err := ExpandCommand(p.cfg.ConvertCommand, in, tmpDir)
		if err != nil {
			return "", err
		}
		p.logger.Info("preprocess.convert.start", "cmd", cmd, "input", filepath.Base(in))
		if _, errb, err := p.runner.Run(ctx, cmd, args...); err != nil {
			return "", fmt.Errorf("convert %s: %w (%s)", filepath.Base(in), err, strings.TrimSpace(string(errb)))
		}
		produced := filepath.Join(tmpDir, name)
		if !cached(produced) {
			return "", fmt.Errorf("converter produced no output for %s", filepath.Base(in))
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return "", fmt.Errorf("create convert dir: %w", err)
		}
		if err := os.Rename(produced, out); err != nil {
			return "", fmt.Errorf("store converted file: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		p.logger.Debug("preprocess.convert.shared", "out", out)
	}
	return v.(string), nil
}

func cached(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// ExpandCommand splits a command template and fills in {input} and {outdir}.
func ExpandCommand(template, input, outDir string) (string, []string, error) {
	parts, err := shlex.Split(template)
	if err != nil {
		return "", nil, fmt.Errorf("parse convert command: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, errors.New("convert command is empty")
	}
	r := strings.NewReplacer("{input}", input, "{outdir}", outDir)
	for i := range parts {
		parts[i] = r.Replace(parts[i])
	}
	return parts[0], parts[1:], nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
