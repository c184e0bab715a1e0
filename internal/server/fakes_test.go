package server

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/core"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
	"github.com/joseph-ayodele/resume-parser/internal/services/parse"
)

type fakeParser struct {
	mu sync.Mutex

	err  error
	runs []*entity.ParseRun

	gotName       string
	gotBody       []byte
	gotPath       string
	gotTimestamps string
	gotOpts       repository.ListOptions
}

var testRunID = uuid.MustParse("7f1c2d8e-1111-4a2b-9c3d-2e4f5a6b7c8d")

func (f *fakeParser) outcome(timestamps string) *parse.Outcome {
	format, _ := constants.ParseTimestampFormat(timestamps)
	res := &core.Result{
		Format: format,
		Fields: llm.ResumeFields{Name: []string{"John Doe"}, Skills: []string{"Go"}},
		Times: core.ProcessTimes{
			Total:         1500 * time.Millisecond,
			PreProcessing: 100 * time.Millisecond,
			Transcription: 900 * time.Millisecond,
			Extraction:    450 * time.Millisecond,
		},
	}
	return &parse.Outcome{RunID: testRunID, Result: res, Response: res.Response()}
}

func (f *fakeParser) ParseUpload(_ context.Context, req parse.UploadRequest) (*parse.Outcome, error) {
	body, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	f.gotName, f.gotBody, f.gotTimestamps = req.FileName, body, req.Timestamps
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome(req.Timestamps), nil
}

func (f *fakeParser) ParseFile(_ context.Context, path, timestamps string) (*parse.Outcome, error) {
	f.mu.Lock()
	f.gotPath, f.gotTimestamps = path, timestamps
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome(timestamps), nil
}

func (f *fakeParser) GetRun(_ context.Context, id string) (*entity.ParseRun, error) {
	for _, r := range f.runs {
		if r.ID.String() == id {
			return r, nil
		}
	}
	return nil, common.NewAppError(common.CodeNotFound, "run not found", common.ErrNotFound)
}

func (f *fakeParser) ListRuns(_ context.Context, opts repository.ListOptions) ([]*entity.ParseRun, error) {
	f.mu.Lock()
	f.gotOpts = opts
	f.mu.Unlock()
	return f.runs, nil
}

type fakeExporter struct{ status string }

func (e *fakeExporter) RunsXLSX(_ context.Context, status string) ([]byte, error) {
	e.status = status
	return []byte("PK-xlsx"), nil
}

type fakePinger struct{ err error }

func (p fakePinger) HealthCheck(context.Context, time.Duration) error { return p.err }
