package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ahmethakanbesel/nbp-datahub/internal/artifact"
	"github.com/ahmethakanbesel/nbp-datahub/internal/config"
	"github.com/ahmethakanbesel/nbp-datahub/internal/extract"
	"github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/load"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/notify"
	"github.com/ahmethakanbesel/nbp-datahub/internal/platform/sqlite"
	jobrepo "github.com/ahmethakanbesel/nbp-datahub/internal/repository/job"
	raterepo "github.com/ahmethakanbesel/nbp-datahub/internal/repository/rate"
	"github.com/ahmethakanbesel/nbp-datahub/internal/replicate"
	"github.com/ahmethakanbesel/nbp-datahub/internal/scraper/nbp"
	"github.com/ahmethakanbesel/nbp-datahub/internal/transform"
)

// OpenStore returns a load.OpenFunc for the SQLite file at path, creating
// its directory when needed.
func OpenStore(path string) load.OpenFunc {
	return func(context.Context) (load.Store, error) {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return raterepo.Open(path)
	}
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	return nil
}

// storeJournal records runs in the store file, opening a connection only for
// the duration of each call.
type storeJournal struct {
	path   string
	logger *slog.Logger
}

func (s storeJournal) with(fn func(*job.Service) error) error {
	if err := ensureDir(s.path); err != nil {
		return err
	}
	db, err := sqlite.Open(s.path)
	if err != nil {
		return fmt.Errorf("open run journal: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(job.NewService(jobrepo.NewRepository(db.DB), job.WithLogger(s.logger)))
}

func (s storeJournal) Begin(ctx context.Context, runID string) (j *job.Job, err error) {
	err = s.with(func(svc *job.Service) error {
		j, err = svc.Begin(ctx, runID)
		return err
	})
	return j, err
}

func (s storeJournal) End(ctx context.Context, j *job.Job, stage string, runErr error) error {
	return s.with(func(svc *job.Service) error {
		return svc.End(ctx, j, stage, runErr)
	})
}

// Build wires a production pipeline from cfg. The returned closer releases
// the event publisher.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, func() error, error) {
	runID := NewRunID()
	logger = logger.With("run_id", runID)

	artifacts := artifact.NewFS(cfg.DataDir)

	source := nbp.New(
		nbp.WithBaseURL(cfg.NBPBaseURL),
		nbp.WithTable(cfg.NBPTable),
		nbp.WithTimeout(cfg.FetchTimeout),
	)

	replicator, err := replicate.New(ctx, cfg.Replication(), replicate.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("init replication: %w", err)
	}
	if _, disabled := replicator.(replicate.Disabled); disabled {
		logger.Warn("remote storage is not configured, uploads are disabled")
	}

	notifier := notify.New(cfg.KafkaBrokers, cfg.KafkaTopic)

	fetcher := extract.NewFetcher(source, artifacts, extract.WithLogger(logger))
	normalizer := transform.NewNormalizer(artifacts,
		transform.WithLogger(logger),
		transform.WithMetrics(m),
	)
	merger := load.NewMerger(artifacts, OpenStore(cfg.DBPath),
		load.WithLogger(logger),
		load.WithMetrics(m),
		load.WithReplicator(replicator),
		load.WithNotifier(notifier),
		load.WithRunID(runID),
	)

	p := New(fetcher, normalizer, merger,
		WithRunID(runID),
		WithLogger(logger),
		WithMetrics(m),
		WithLock(NewLock(cfg.DataDir, cfg.LockTTL, logger)),
		WithJournal(storeJournal{path: cfg.DBPath, logger: logger}),
		WithLenientTransform(cfg.LenientTransform),
		WithMetricsTextfile(cfg.MetricsTextfile),
	)
	return p, notifier.Close, nil
}
