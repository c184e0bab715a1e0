package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/internal/services/parse"
)

type recordingParser struct {
	mu    sync.Mutex
	paths []string
	got   chan string
}

func (r *recordingParser) ParseFile(_ context.Context, path, timestamps string) (*parse.Outcome, error) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.got <- path
	return &parse.Outcome{}, nil
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for inbox")
		return ""
	}
}

func TestInboxParsesExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xlsx"), []byte("x"), 0o644))

	p := &recordingParser{got: make(chan string, 8)}
	inbox := NewInbox(InboxConfig{Dir: dir, Timestamps: "s", Debounce: 20 * time.Millisecond}, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx) }()

	assert.Equal(t, existing, waitFor(t, p.got))

	dropped := filepath.Join(dir, "dropped.txt")
	require.NoError(t, os.WriteFile(dropped, []byte("Jane Roe"), 0o644))
	assert.Equal(t, dropped, waitFor(t, p.got))

	cancel()
	require.NoError(t, <-done)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []string{existing, dropped}, p.paths)
}

func TestStartWatcherNeedsRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}

func TestIsHiddenAndParsable(t *testing.T) {
	assert.True(t, IsHidden("/inbox/.DS_Store"))
	assert.True(t, IsHidden("/inbox/~$resume.docx"))
	assert.False(t, IsHidden("/inbox/resume.docx"))
	assert.True(t, Parsable("/inbox/resume.DOCX"))
	assert.False(t, Parsable("/inbox/resume.xlsx"))
}
