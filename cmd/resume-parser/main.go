package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/resume-parser/internal/app"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/ingest"
	"github.com/joseph-ayodele/resume-parser/internal/server"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a config file (default: resume_parser.yaml in . or /etc/resume-parser/)")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := app.NewLogger(cfg.Pipeline, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}
	if runtime.GOOS != "linux" {
		logger.Warn("unsupported platform, only linux is tested", "os", runtime.GOOS)
	}
	if !cfg.Pipeline.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.Close(sctx)
	}()
	logger.Info("pipeline ready", "workers", a.Pool.Workers(), "transcriber", cfg.Transcriber.Backend, "db", cfg.Database.Driver)

	if err := a.Warmup(ctx); err != nil {
		return err
	}

	router := server.NewRouter(server.HTTPConfig{
		ProjectName: cfg.Server.ProjectName,
		Version:     Version,
		APIPrefix:   cfg.Server.APIPrefix,
		AuthEnable:  cfg.Server.AuthEnable,
		AuthKey:     cfg.Server.AuthKey,
	}, a.Parser, a.Exporter, a.DB, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// base64 inflates uploads by a third
	grpcSrv, health := server.NewGRPCServer(server.GRPCConfig{
		MaxRecvMsgSize: int(cfg.Server.MaxUploadSize)*4/3 + 1<<20,
		AuthEnable:     cfg.Server.AuthEnable,
		AuthKey:        cfg.Server.AuthKey,
	}, server.NewParserService(a.Parser, logger, server.WithAllowedDirs(a.Store.Dir(), cfg.Storage.InboxDir)), logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		a.Store.RunJanitor(gctx, cfg.Storage.Retention, 0)
		return nil
	})

	if cfg.Storage.InboxDir != "" {
		g.Go(func() error {
			inbox := ingest.NewInbox(ingest.InboxConfig{Dir: cfg.Storage.InboxDir}, a.Parser, logger)
			return inbox.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		health.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}
