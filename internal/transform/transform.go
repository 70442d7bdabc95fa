// Package transform flattens the latest raw rate table into clean,
// provenance-stamped CSV records.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/artifact"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

var (
	ErrNoRawArtifact = errors.New("no raw artifacts found")
	ErrNoRecords     = errors.New("no usable rate records")
)

type Result struct {
	Source   artifact.Artifact
	Artifact artifact.Artifact
	Records  []rate.Record
	Report   Report
}

type Normalizer struct {
	store    artifact.Store
	policy   artifact.Policy
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Normalizer)

func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// WithClock overrides the clock used for the transform timestamp and the
// clean artifact date.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

func NewNormalizer(store artifact.Store, opts ...Option) *Normalizer {
	n := &Normalizer{
		store:    store,
		policy:   artifact.LatestOnly,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, o := range opts {
		o(n)
	}
	n.logger = logging.OrDefault(n.logger)
	return n
}

// Transform normalizes the most recent raw artifact and writes
// nbp_rates_<today>.csv. Older raw artifacts are ignored.
func (n *Normalizer) Transform(ctx context.Context) (Result, error) {
	selected, err := n.policy.Select(ctx, n.store, artifact.Raw)
	if err != nil {
		n.logger.Error("error listing raw artifacts", "error", err)
		return Result{}, apperror.Wrap(apperror.Internal, "select raw artifact", err)
	}
	if len(selected) == 0 {
		n.logger.Error("error transforming rates", "error", ErrNoRawArtifact)
		return Result{}, apperror.Wrap(apperror.DataQuality, "transform", ErrNoRawArtifact)
	}
	src := selected[0]
	n.logger.Info("transforming raw artifact", "artifact", src.Name, "policy", n.policy)

	body, err := n.store.Read(ctx, src)
	if err != nil {
		n.logger.Error("error reading raw artifact", "artifact", src.Name, "error", err)
		return Result{}, apperror.Wrap(apperror.Internal, "read raw artifact", err)
	}

	snap, err := rate.ParseSnapshot(body)
	if err != nil {
		n.logger.Error("error parsing raw artifact", "artifact", src.Name, "error", err)
		return Result{}, apperror.Wrap(apperror.DataQuality, "parse raw artifact", err)
	}

	now := n.now()
	records, report, err := n.normalize(snap, now.Truncate(time.Second))
	if err != nil {
		n.logger.Error("error normalizing rates", "artifact", src.Name, "error", err)
		return Result{}, apperror.Wrap(apperror.DataQuality, "normalize "+src.Name, err)
	}
	n.logReport(src, report)

	if len(records) == 0 {
		n.logger.Error("error transforming rates", "artifact", src.Name, "error", ErrNoRecords)
		return Result{}, apperror.Wrap(apperror.DataQuality, "normalize "+src.Name, ErrNoRecords)
	}

	data, err := rate.EncodeCSV(records)
	if err != nil {
		return Result{}, apperror.Wrap(apperror.Internal, "encode clean artifact", err)
	}
	out, err := n.store.Write(ctx, artifact.Clean, now, data)
	if err != nil {
		n.logger.Error("error writing clean artifact", "error", err)
		return Result{}, apperror.Wrap(apperror.Internal, "write clean artifact", err)
	}

	n.metrics.Normalized(len(records))
	n.logger.Info("transformed rates saved", "artifact", out.Name, "records", len(records))
	return Result{Source: src, Artifact: out, Records: records, Report: report}, nil
}

func (n *Normalizer) logReport(src artifact.Artifact, r Report) {
	if len(r.Missing) > 0 {
		n.logger.Warn("missing expected columns", "artifact", src.Name, "columns", r.Missing)
	}
	if len(r.Extra) > 0 {
		n.logger.Warn("extra columns detected", "artifact", src.Name, "columns", r.Extra)
	}
	for _, d := range r.Drops {
		n.logger.Warn("dropped rate row", "artifact", src.Name, "row", d.Row, "code", d.Code,
			"reason", d.Reason, "detail", d.Detail)
	}
	for reason, count := range r.DroppedBy() {
		n.metrics.Dropped(reason, count)
	}
}

func (n *Normalizer) check(r rate.Record) error {
	if err := n.validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}
