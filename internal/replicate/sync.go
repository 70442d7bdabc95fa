package replicate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/nbp-datahub/internal/artifact"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
)

type SyncResult struct {
	Uploaded []string
	Failed   map[string]error
}

// Sync uploads every clean artifact in store with at most workers uploads in
// flight. A failed upload does not stop the others; the joined error of all
// failures is returned.
func Sync(ctx context.Context, store artifact.Store, r Replicator, workers int, logger *slog.Logger, m *metrics.Metrics) (SyncResult, error) {
	logger = logging.OrDefault(logger)
	if _, disabled := r.(Disabled); disabled {
		return SyncResult{}, ErrNotConfigured
	}

	list, err := artifact.AllPending.Select(ctx, store, artifact.Clean)
	if err != nil {
		return SyncResult{}, err
	}
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		res = SyncResult{Failed: make(map[string]error)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, a := range list {
		g.Go(func() error {
			err := PutArtifact(gctx, store, r, a)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("error uploading artifact", "artifact", a.Name, "error", err)
				m.Replicated(metrics.ReplicationFailed)
				res.Failed[a.Name] = err
				return nil
			}
			m.Replicated(metrics.ReplicationUploaded)
			res.Uploaded = append(res.Uploaded, a.Name)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("sync finished", "uploaded", len(res.Uploaded), "failed", len(res.Failed))
	if len(res.Failed) > 0 {
		errs := make([]error, 0, len(res.Failed))
		for name, err := range res.Failed {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return res, errors.Join(errs...)
	}
	return res, nil
}

// PutArtifact reads a from store and uploads it under its file name.
func PutArtifact(ctx context.Context, store artifact.Store, r Replicator, a artifact.Artifact) error {
	data, err := store.Read(ctx, a)
	if err != nil {
		return err
	}
	return r.Put(ctx, Object{Name: a.Name, Body: bytes.NewReader(data), ContentType: a.Kind.ContentType()})
}
