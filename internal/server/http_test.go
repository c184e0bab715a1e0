package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/core"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

func setupTestRouter(cfg HTTPConfig, p *fakeParser, db Pinger) (*gin.Engine, *fakeExporter) {
	gin.SetMode(gin.TestMode)
	exp := &fakeExporter{}
	return NewRouter(cfg, p, exp, db, nil), exp
}

func uploadRequest(t *testing.T, name string, content []byte, timestamps string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if timestamps != "" {
		require.NoError(t, mw.WriteField("timestamps", timestamps))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestInfoAndHealth(t *testing.T) {
	router, _ := setupTestRouter(HTTPConfig{ProjectName: "resume-parser", Version: "1.2.3"}, &fakeParser{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"resume-parser","version":"1.2.3"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	sick, _ := setupTestRouter(HTTPConfig{}, &fakeParser{}, fakePinger{err: errors.New("db down")})
	w = httptest.NewRecorder()
	sick.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleParse(t *testing.T) {
	p := &fakeParser{}
	router, _ := setupTestRouter(HTTPConfig{}, p, nil)

	w := httptest.NewRecorder()
	req := uploadRequest(t, "john.pdf", []byte("%PDF-1.4"), "ms")
	req.Header.Set(RequestIDHeader, "req-42")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, testRunID.String(), w.Header().Get("X-Run-ID"))
	assert.Equal(t, "john.pdf", p.gotName)
	assert.Equal(t, []byte("%PDF-1.4"), p.gotBody)
	assert.Equal(t, "ms", p.gotTimestamps)

	var resp struct {
		ParserResults struct {
			Name []string `json:"Name"`
		} `json:"ParserResults"`
		TimeStamps   string             `json:"TimeStamps"`
		ProcessTimes map[string]float64 `json:"ProcessTimes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"John Doe"}, resp.ParserResults.Name)
	assert.Equal(t, "ms", resp.TimeStamps)
	assert.InDelta(t, 1500.0, resp.ProcessTimes["total"], 0.001)
	assert.InDelta(t, 900.0, resp.ProcessTimes["transcription"], 0.001)
}

func TestHandleParseDefaultsToSeconds(t *testing.T) {
	p := &fakeParser{}
	router, _ := setupTestRouter(HTTPConfig{}, p, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "john.txt", []byte("John Doe"), ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s", p.gotTimestamps)
}

func TestHandleParseRequiresFile(t *testing.T) {
	router, _ := setupTestRouter(HTTPConfig{}, &fakeParser{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "", nil, "s"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleParseErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", common.InvalidInputf("unsupported file type %q", ".xlsx"), http.StatusBadRequest},
		{"stage failure", &core.StageError{Stage: constants.StageTranscription, Err: errors.New("transcriber returned 500")}, http.StatusBadGateway},
		{"internal", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupTestRouter(HTTPConfig{}, &fakeParser{err: tt.err}, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, "john.pdf", []byte("%PDF"), "s"))
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := setupTestRouter(HTTPConfig{AuthEnable: true, AuthKey: "sekret"}, &fakeParser{}, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad format", "sekret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer sekret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	// health stays open
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunsEndpoints(t *testing.T) {
	run := &entity.ParseRun{
		ID:        testRunID,
		FileName:  "john.pdf",
		Status:    string(constants.RunStatusSucceeded),
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	p := &fakeParser{runs: []*entity.ParseRun{run}}
	router, exp := setupTestRouter(HTTPConfig{APIPrefix: "/v2"}, p, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/runs?status=SUCCEEDED&limit=5&offset=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCEEDED", p.gotOpts.Status)
	assert.Equal(t, 5, p.gotOpts.Limit)
	assert.Equal(t, 10, p.gotOpts.Offset)
	assert.Contains(t, w.Body.String(), "john.pdf")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/runs?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/runs/"+testRunID.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/runs/00000000-0000-0000-0000-000000000001", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/runs/export?status=FAILED", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "parse_runs_")
	assert.Equal(t, "PK-xlsx", w.Body.String())
	assert.Equal(t, "FAILED", exp.status)
}
