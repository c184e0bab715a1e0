package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
	"github.com/joseph-ayodele/resume-parser/internal/services/parse"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Parser is the parse use case as seen by the transports.
type Parser interface {
	ParseUpload(ctx context.Context, req parse.UploadRequest) (*parse.Outcome, error)
	ParseFile(ctx context.Context, path, timestamps string) (*parse.Outcome, error)
	GetRun(ctx context.Context, id string) (*entity.ParseRun, error)
	ListRuns(ctx context.Context, opts repository.ListOptions) ([]*entity.ParseRun, error)
}

// Exporter renders the run log as a spreadsheet.
type Exporter interface {
	RunsXLSX(ctx context.Context, status string) ([]byte, error)
}

// Pinger reports database health. A nil Pinger means there is no database to check.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type HTTPConfig struct {
	ProjectName string
	Version     string
	APIPrefix   string
	AuthEnable  bool
	AuthKey     string
}

type handler struct {
	cfg      HTTPConfig
	parser   Parser
	exporter Exporter
	db       Pinger
	logger   *slog.Logger
}

// NewRouter builds the HTTP API. exporter and db may be nil.
func NewRouter(cfg HTTPConfig, parser Parser, exporter Exporter, db Pinger, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	h := &handler{cfg: cfg, parser: parser, exporter: exporter, db: db, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/", h.handleInfo)
	r.GET("/healthz", h.handleHealth)

	api := r.Group(cfg.APIPrefix)
	api.Use(AuthMiddleware(cfg.AuthEnable, cfg.AuthKey))
	{
		api.POST("/parse", h.handleParse)
		api.GET("/runs", h.handleListRuns)
		api.GET("/runs/export", h.handleExportRuns)
		api.GET("/runs/:id", h.handleGetRun)
	}
	return r
}

func (h *handler) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": h.cfg.ProjectName, "version": h.cfg.Version})
}

func (h *handler) handleHealth(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleParse accepts a multipart "file" plus an optional "timestamps" field (s, ms or hms).
func (h *handler) handleParse(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	out, err := h.parser.ParseUpload(c.Request.Context(), parse.UploadRequest{
		FileName:   fh.Filename,
		Body:       f,
		Timestamps: c.DefaultPostForm("timestamps", string(constants.DefaultTimestampFormat)),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if out.RunID != uuid.Nil {
		c.Header("X-Run-ID", out.RunID.String())
	}
	c.JSON(http.StatusOK, out.Response)
}

func (h *handler) handleListRuns(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runs, err := h.parser.ListRuns(c.Request.Context(), repository.ListOptions{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if runs == nil {
		runs = []*entity.ParseRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *handler) handleGetRun(c *gin.Context) {
	run, err := h.parser.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *handler) handleExportRuns(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run log disabled"})
		return
	}
	b, err := h.exporter.RunsXLSX(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	name := fmt.Sprintf("parse_runs_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (h *handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
