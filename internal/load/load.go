// Package load merges clean artifacts into the rate store, one effective
// date partition at a time, and hands each loaded artifact to replication.
package load

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/artifact"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/notify"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
	"github.com/ahmethakanbesel/nbp-datahub/internal/replicate"
)

// ErrNothingToLoad means no clean artifacts exist. The store is not opened.
var ErrNothingToLoad = errors.New("no clean artifacts to load")

// Store is the write side of the rate store used by the merger.
type Store interface {
	ReplaceDates(ctx context.Context, records []rate.Record) (int64, error)
	Close() error
}

// OpenFunc opens the store. It is called once per Load.
type OpenFunc func(ctx context.Context) (Store, error)

// Partition is one effective date written by a file.
type Partition struct {
	Date time.Time
	Rows int
}

type File struct {
	Artifact   artifact.Artifact
	Partitions []Partition
	Rows       int64
}

type Result struct {
	Loaded  []File
	Skipped map[string]error
}

func (r Result) Rows() int64 {
	var n int64
	for _, f := range r.Loaded {
		n += f.Rows
	}
	return n
}

type Merger struct {
	artifacts  artifact.Store
	open       OpenFunc
	policy     artifact.Policy
	replicator replicate.Replicator
	notifier   notify.Notifier
	runID      string
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Merger)

func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Merger) { m.metrics = mt }
}

func WithReplicator(r replicate.Replicator) Option {
	return func(m *Merger) { m.replicator = r }
}

func WithNotifier(n notify.Notifier) Option {
	return func(m *Merger) { m.notifier = n }
}

// WithRunID tags published events with the pipeline run id.
func WithRunID(id string) Option {
	return func(m *Merger) { m.runID = id }
}

func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

func NewMerger(artifacts artifact.Store, open OpenFunc, opts ...Option) *Merger {
	m := &Merger{
		artifacts:  artifacts,
		open:       open,
		policy:     artifact.AllPending,
		replicator: replicate.Disabled{},
		notifier:   notify.Noop{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = logging.OrDefault(m.logger)
	return m
}

// Load merges every clean artifact, oldest first. For each effective date in
// an artifact the stored partition is replaced wholesale, so loading the
// same artifact again leaves the store unchanged. A file that fails to
// decode or write is skipped; Load fails only when every file failed.
func (m *Merger) Load(ctx context.Context) (Result, error) {
	files, err := m.policy.Select(ctx, m.artifacts, artifact.Clean)
	if err != nil {
		m.logger.Error("error listing clean artifacts", "error", err)
		return Result{}, apperror.Wrap(apperror.Internal, "select clean artifacts", err)
	}
	if len(files) == 0 {
		m.logger.Warn("no clean artifacts found")
		return Result{}, ErrNothingToLoad
	}

	store, err := m.open(ctx)
	if err != nil {
		m.logger.Error("error opening store", "error", err)
		return Result{}, apperror.Wrap(apperror.Store, "open store", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			m.logger.Error("error closing store", "error", err)
		}
	}()

	res := Result{Skipped: make(map[string]error)}
	var errs []error
	for _, a := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		m.logger.Info("loading artifact", "artifact", a.Name)
		f, data, err := m.merge(ctx, store, a)
		if err != nil {
			m.logger.Error("error loading artifact", "artifact", a.Name, "error", err)
			m.metrics.Skipped()
			res.Skipped[a.Name] = err
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
			continue
		}
		m.metrics.Merged(int(f.Rows))
		m.logger.Info("loaded artifact", "artifact", a.Name, "rows", f.Rows, "dates", len(f.Partitions))
		res.Loaded = append(res.Loaded, f)

		m.replicate(ctx, a, data)
		m.publish(ctx, f)
	}

	if len(res.Loaded) == 0 {
		return res, apperror.Wrap(apperror.Store, "load clean artifacts", errors.Join(errs...))
	}
	m.logger.Info("merged clean artifacts", "files", len(res.Loaded), "skipped", len(res.Skipped), "rows", res.Rows())
	return res, nil
}

func (m *Merger) merge(ctx context.Context, store Store, a artifact.Artifact) (File, []byte, error) {
	data, err := m.artifacts.Read(ctx, a)
	if err != nil {
		return File{}, nil, err
	}
	records, err := rate.DecodeCSV(data)
	if err != nil {
		return File{}, nil, apperror.Wrap(apperror.DataQuality, "decode", err)
	}
	if len(records) == 0 {
		return File{}, nil, apperror.New(apperror.DataQuality, "artifact has no rows")
	}

	rows, err := store.ReplaceDates(ctx, records)
	if err != nil {
		return File{}, nil, apperror.Wrap(apperror.Store, "replace partitions", err)
	}
	return File{Artifact: a, Partitions: partitions(records), Rows: rows}, data, nil
}

func partitions(records []rate.Record) []Partition {
	counts := make(map[time.Time]int)
	for _, r := range records {
		counts[r.EffectiveDate]++
	}
	dates := rate.Dates(records)
	out := make([]Partition, 0, len(dates))
	for _, d := range dates {
		out = append(out, Partition{Date: d, Rows: counts[d]})
	}
	return out
}

// replicate uploads a merged artifact. Failures never undo the merge.
func (m *Merger) replicate(ctx context.Context, a artifact.Artifact, data []byte) {
	err := m.replicator.Put(ctx, replicate.Object{
		Name:        a.Name,
		Body:        bytes.NewReader(data),
		ContentType: a.Kind.ContentType(),
	})
	switch {
	case errors.Is(err, replicate.ErrNotConfigured):
		m.logger.Warn("skipping upload, remote storage is not configured", "artifact", a.Name)
		m.metrics.Replicated(metrics.ReplicationSkipped)
	case err != nil:
		m.logger.Error("error uploading artifact", "artifact", a.Name, "error", err)
		m.metrics.Replicated(metrics.ReplicationFailed)
	default:
		m.metrics.Replicated(metrics.ReplicationUploaded)
	}
}

func (m *Merger) publish(ctx context.Context, f File) {
	loadedAt := m.now().UTC()
	events := make([]notify.Event, 0, len(f.Partitions))
	for _, p := range f.Partitions {
		events = append(events, notify.Event{
			EffectiveDate: p.Date.Format(rate.DateFormat),
			Rows:          p.Rows,
			Artifact:      f.Artifact.Name,
			RunID:         m.runID,
			LoadedAt:      loadedAt,
		})
	}
	err := m.notifier.PartitionLoaded(ctx, events...)
	if err != nil {
		m.logger.Error("error publishing load events", "artifact", f.Artifact.Name, "error", err)
	}
	if _, noop := m.notifier.(notify.Noop); !noop {
		m.metrics.Notified(err == nil)
	}
}
