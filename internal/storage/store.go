package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/lithammer/shortuuid/v4"

	"github.com/joseph-ayodele/resume-parser/constants"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Store keeps uploaded documents and their JSON results side by side in one directory.
type Store struct {
	dir     string
	maxSize int64
	logger  *slog.Logger
	now     func() time.Time
}

// StoredFile describes an upload written to the store.
type StoredFile struct {
	Path         string
	Name         string // name inside the store
	OriginalName string
	Size         int64
}

func New(dir string, maxSize int64, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: abs, maxSize: maxSize, logger: logger, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// ConvertedDirName holds PDF conversions, one sub-directory per content hash.
const ConvertedDirName = ".converted"

func (s *Store) ConvertedDir() string { return filepath.Join(s.dir, ConvertedDirName) }

// SaveUpload copies r into the store under "<unix-ts>_<shortuuid>_<name>".
// The original name is reduced to its base so callers cannot escape the directory.
func (s *Store) SaveUpload(originalName string, r io.Reader) (StoredFile, error) {
	base := sanitizeName(originalName)
	name := fmt.Sprintf("%d_%s_%s", s.now().Unix(), shortuuid.New(), base)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create upload: %w", err)
	}

	src := r
	if s.maxSize > 0 {
		// one extra byte tells us the limit was crossed
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = fmt.Errorf("%s is larger than %s: %w", base, datasize.ByteSize(s.maxSize).HR(), ErrTooLarge)
	}
	if err != nil {
		_ = os.Remove(path)
		return StoredFile{}, err
	}

	s.logger.Debug("storage.upload.saved", "name", name, "bytes", n)
	return StoredFile{Path: path, Name: name, OriginalName: base, Size: n}, nil
}

// SaveOutput writes data next to the stored upload, replacing its extension with .json.
func (s *Store) SaveOutput(storedPath string, data []byte) (string, error) {
	out := strings.TrimSuffix(storedPath, filepath.Ext(storedPath)) + ".json"
	if filepath.Dir(out) != s.dir {
		out = filepath.Join(s.dir, filepath.Base(out))
	}
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write output: %w", err)
	}
	return out, nil
}

// Sweep removes stored files and conversion dirs last modified before now-retention.
func (s *Store) Sweep(retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-retention)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	n, err := sweepDirs(s.ConvertedDir(), cutoff)
	removed += n
	if err != nil {
		errs = append(errs, err)
	}
	return removed, errors.Join(errs...)
}

// sweepDirs removes the stale sub-directories of root, each counted once.
func sweepDirs(root string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// RunJanitor sweeps every interval until ctx is done. A zero retention keeps files forever.
func (s *Store) RunJanitor(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		s.logger.Debug("storage.janitor.disabled")
		return
	}
	if interval <= 0 {
		interval = min(retention, time.Hour)
	}
	s.logger.Info("storage.janitor.start", "retention", retention.String(), "interval", interval.String())

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(retention)
			if err != nil {
				s.logger.Warn("storage.janitor.errors", "removed", n, "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("storage.janitor.swept", "removed", n)
			}
		}
	}
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20, r == '/', r == ':':
			return -1
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		return "upload"
	}
	if constants.NormalizeExt(filepath.Ext(base)) == "" {
		return base + ".bin"
	}
	return base
}
