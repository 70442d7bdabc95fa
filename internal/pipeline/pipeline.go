// Package pipeline runs the fetch, normalize and merge stages in order and
// decides whether a run succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/nbp-datahub/internal/extract"
	"github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/load"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/transform"
)

type Fetcher interface {
	Fetch(ctx context.Context) (extract.Result, error)
}

type Normalizer interface {
	Transform(ctx context.Context) (transform.Result, error)
}

type Merger interface {
	Load(ctx context.Context) (load.Result, error)
}

// Journal records the start and outcome of each run.
type Journal interface {
	Begin(ctx context.Context, runID string) (*job.Job, error)
	End(ctx context.Context, j *job.Job, stage string, runErr error) error
}

// Report describes one run. TransformErr is set when a lenient run went on
// past a failed normalization.
type Report struct {
	RunID        string
	Extract      extract.Result
	Transform    transform.Result
	TransformErr error
	Load         load.Result
}

type Pipeline struct {
	fetcher    Fetcher
	normalizer Normalizer
	merger     Merger

	runID    string
	lock     *Lock
	journal  Journal
	lenient  bool
	textfile string
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

func WithLock(l *Lock) Option {
	return func(p *Pipeline) { p.lock = l }
}

func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithLenientTransform lets a run continue to the merge stage when
// normalization fails, loading whatever clean artifacts already exist.
func WithLenientTransform(lenient bool) Option {
	return func(p *Pipeline) { p.lenient = lenient }
}

// WithMetricsTextfile writes the collected metrics to path after every run.
func WithMetricsTextfile(path string) Option {
	return func(p *Pipeline) { p.textfile = path }
}

func New(f Fetcher, n Normalizer, m Merger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    f,
		normalizer: n,
		merger:     m,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.runID == "" {
		p.runID = NewRunID()
	}
	p.logger = logging.OrDefault(p.logger)
	return p
}

func NewRunID() string {
	return uuid.NewString()
}

func (p *Pipeline) RunID() string { return p.runID }

// Run executes the stages in order and stops at the first failing stage.
func (p *Pipeline) Run(ctx context.Context) (rep Report, err error) {
	rep.RunID = p.runID
	started := p.now()

	if p.lock != nil {
		release, err := p.lock.Acquire(p.runID)
		if err != nil {
			p.logger.Error("pipeline not started", "error", err)
			return rep, err
		}
		defer func() {
			if err := release(); err != nil {
				p.logger.Error("error releasing pipeline lock", "error", err)
			}
		}()
	}
	defer p.writeTextfile()

	var failed string
	if p.journal != nil {
		j, jerr := p.journal.Begin(ctx, p.runID)
		if jerr != nil {
			p.logger.Error("error recording run start", "error", jerr)
		} else {
			defer func() { p.record(ctx, j, &rep, failed, err) }()
		}
	}

	p.logger.Info("pipeline started")

	err = p.stage(metrics.StageExtract, func() (err error) {
		rep.Extract, err = p.fetcher.Fetch(ctx)
		return err
	})
	if err != nil {
		failed = metrics.StageExtract
		return rep, p.fail(failed, err)
	}

	err = p.stage(metrics.StageTransform, func() (err error) {
		rep.Transform, err = p.normalizer.Transform(ctx)
		return err
	})
	if err != nil {
		if !p.lenient {
			failed = metrics.StageTransform
			return rep, p.fail(failed, err)
		}
		rep.TransformErr = err
		p.logger.Warn("continuing after transform failure", "error", err)
	}

	err = p.stage(metrics.StageLoad, func() (err error) {
		rep.Load, err = p.merger.Load(ctx)
		return err
	})
	switch {
	case errors.Is(err, load.ErrNothingToLoad) && p.lenient:
		p.logger.Warn("nothing to load", "error", err)
	case err != nil:
		failed = metrics.StageLoad
		return rep, p.fail(failed, err)
	}

	p.metrics.Succeeded(p.now())
	p.logger.Info("pipeline finished",
		"duration", p.now().Sub(started).Round(time.Millisecond).String(),
		"fetched", rep.Extract.Count,
		"normalized", len(rep.Transform.Records),
		"merged_rows", rep.Load.Rows(),
	)
	return rep, nil
}

func (p *Pipeline) record(ctx context.Context, j *job.Job, rep *Report, stage string, runErr error) {
	j.Fetched = int64(rep.Extract.Count)
	j.Normalized = int64(len(rep.Transform.Records))
	j.RowsMerged = rep.Load.Rows()
	j.FilesSkipped = int64(len(rep.Load.Skipped))
	if err := p.journal.End(context.WithoutCancel(ctx), j, stage, runErr); err != nil {
		p.logger.Error("error recording run outcome", "error", err)
	}
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := p.now()
	err := fn()
	p.metrics.ObserveStage(name, p.now().Sub(start), err)
	return err
}

func (p *Pipeline) fail(stage string, err error) error {
	p.logger.Error("pipeline failed", "stage", stage, "error", err)
	return fmt.Errorf("%s: %w", stage, err)
}

func (p *Pipeline) writeTextfile() {
	if p.textfile == "" || p.metrics == nil {
		return
	}
	if err := p.metrics.WriteTextfile(p.textfile); err != nil {
		p.logger.Error("error writing metrics", "path", p.textfile, "error", err)
	}
}
