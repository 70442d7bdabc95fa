// Package extract pulls the current rate table from the source and persists
// it unmodified as a raw artifact.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/artifact"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

// Source returns a validated snapshot of the current rate table.
type Source interface {
	Fetch(ctx context.Context) (rate.Snapshot, error)
}

type Result struct {
	Artifact artifact.Artifact
	Count    int
}

type Fetcher struct {
	source Source
	store  artifact.Store
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Fetcher)

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithClock overrides the clock that dates raw artifacts.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(source Source, store artifact.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		source: source,
		store:  store,
		now:    time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	f.logger = logging.OrDefault(f.logger)
	return f
}

// Fetch retrieves one snapshot and writes it as raw_nbp_<today>.json. A
// second fetch on the same day overwrites the first. Nothing is written when
// the source fails or returns a malformed body.
func (f *Fetcher) Fetch(ctx context.Context) (Result, error) {
	snap, err := f.source.Fetch(ctx)
	if err != nil {
		f.logger.Error("error fetching rate table", "error", err)
		return Result{}, err
	}

	body, err := snap.Indent()
	if err != nil {
		f.logger.Error("error encoding raw snapshot", "error", err)
		return Result{}, apperror.Wrap(apperror.Source, "encode raw snapshot", err)
	}

	a, err := f.store.Write(ctx, artifact.Raw, f.now(), body)
	if err != nil {
		f.logger.Error("error writing raw artifact", "error", err)
		return Result{}, apperror.Wrap(apperror.Internal, "write raw artifact", err)
	}

	count := snap.Count()
	f.logger.Info("fetched currency records", "count", count, "artifact", a.Name)
	return Result{Artifact: a, Count: count}, nil
}
