package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUploadAndOutput(t *testing.T) {
	s, err := New(t.TempDir(), 0, nil)
	require.NoError(t, err)

	f, err := s.SaveUpload("../../etc/my resume.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, s.Dir(), filepath.Dir(f.Path))
	assert.True(t, strings.HasSuffix(f.Name, "_my_resume.pdf"), f.Name)
	assert.Equal(t, "my_resume.pdf", f.OriginalName)
	assert.EqualValues(t, 8, f.Size)

	other, err := s.SaveUpload("my resume.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.NotEqual(t, f.Path, other.Path)

	out, err := s.SaveOutput(f.Path, []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(f.Path, ".pdf")+".json", out)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(b))
}

func TestSaveUploadTooLarge(t *testing.T) {
	s, err := New(t.TempDir(), 4, nil)
	require.NoError(t, err)

	_, err = s.SaveUpload("cv.pdf", bytes.NewReader([]byte("12345")))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.SaveUpload("cv.pdf", bytes.NewReader([]byte("1234")))
	assert.NoError(t, err)
}

func TestSweep(t *testing.T) {
	s, err := New(t.TempDir(), 0, nil)
	require.NoError(t, err)

	old, err := s.SaveUpload("old.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	fresh, err := s.SaveUpload("fresh.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	n, err := s.Sweep(0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old.Path)
	assert.FileExists(t, fresh.Path)
}

func TestSweepConvertedDirs(t *testing.T) {
	s, err := New(t.TempDir(), 0, nil)
	require.NoError(t, err)

	stale := filepath.Join(s.ConvertedDir(), "0123456789abcdef")
	live := filepath.Join(s.ConvertedDir(), "fedcba9876543210")
	for _, d := range []string{stale, live} {
		require.NoError(t, os.MkdirAll(d, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(d, "cv.pdf"), []byte("%PDF"), 0o644))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	n, err := s.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, stale)
	assert.FileExists(t, filepath.Join(live, "cv.pdf"))
	assert.DirExists(t, s.ConvertedDir())
}

func TestSweepWithoutConvertedDir(t *testing.T) {
	s, err := New(t.TempDir(), 0, nil)
	require.NoError(t, err)
	n, err := s.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "cv.pdf", sanitizeName(`C:\Users\me\cv.pdf`))
	assert.Equal(t, "upload", sanitizeName(""))
	assert.Equal(t, "README.bin", sanitizeName("README"))
}
