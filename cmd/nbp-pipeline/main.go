package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/artifact"
	"github.com/ahmethakanbesel/nbp-datahub/internal/config"
	"github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/pipeline"
	"github.com/ahmethakanbesel/nbp-datahub/internal/platform/sqlite"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
	jobrepo "github.com/ahmethakanbesel/nbp-datahub/internal/repository/job"
	raterepo "github.com/ahmethakanbesel/nbp-datahub/internal/repository/rate"
	"github.com/ahmethakanbesel/nbp-datahub/internal/replicate"
	"github.com/ahmethakanbesel/nbp-datahub/internal/server"
)

const usage = `usage: nbp-pipeline [command]

commands:
  run    fetch, normalize and merge the current rate table (default)
  serve  serve the read-only rates and run history API
  sync   upload every clean artifact to remote storage
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		fmt.Print(usage)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Path:   cfg.LogPath,
	}, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	// Root context: cancelled on SIGINT/SIGTERM so the fetch and any
	// in-flight requests stop promptly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		err = runPipeline(ctx, cfg, logger)
	case "serve":
		err = serve(ctx, cfg, logger)
	case "sync":
		err = syncArtifacts(ctx, cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}

func runPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	p, closeFn, err := pipeline.Build(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Error("error closing publisher", "error", err)
		}
	}()

	_, err = p.Run(ctx)
	return err
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	rateSvc := rate.NewService(raterepo.NewRepository(db.DB))
	jobSvc := job.NewService(jobrepo.NewRepository(db.DB), job.WithLogger(logger))
	if err := jobSvc.RecoverStaleJobs(ctx); err != nil {
		logger.Error("failed to recover stale runs", "error", err)
	}

	m := metrics.New().WithRuntime()
	srv := server.New(ctx, cfg.HTTPPort, rateSvc, jobSvc, m, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func syncArtifacts(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	r, err := replicate.New(ctx, cfg.Replication(), replicate.WithLogger(logger))
	if err != nil {
		return err
	}
	m := metrics.New()
	_, err = replicate.Sync(ctx, artifact.NewFS(cfg.DataDir), r, cfg.SyncWorkers, logger, m)
	if cfg.MetricsTextfile != "" {
		if werr := m.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Error("error writing metrics", "error", werr)
		}
	}
	return err
}
