// Package metrics holds the Prometheus collectors of the pipeline and the
// read API. Every Metrics value owns its registry so tests and commands do
// not share global state.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nbp"

// Stage names used as label values.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// Replication outcomes used as label values.
const (
	ReplicationUploaded = "uploaded"
	ReplicationFailed   = "failed"
	ReplicationSkipped  = "skipped"
)

type Metrics struct {
	Registry *prometheus.Registry

	StageDuration     *prometheus.HistogramVec
	StageFailures     *prometheus.CounterVec
	RecordsNormalized prometheus.Counter
	RecordsDropped    *prometheus.CounterVec
	RowsMerged        prometheus.Counter
	ArtifactsSkipped  prometheus.Counter
	Replications      *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	LastSuccess       prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		),
		StageFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Pipeline stages that returned an error.",
			},
			[]string{"stage"},
		),
		RecordsNormalized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      "Rate records written to clean artifacts.",
		}),
		RecordsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_dropped_total",
				Help:      "Source rows dropped during normalization.",
			},
			[]string{"reason"},
		),
		RowsMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_merged_total",
			Help:      "Rows written to the store by the merger.",
		}),
		ArtifactsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_skipped_total",
			Help:      "Clean artifacts the merger could not load.",
		}),
		Replications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replications_total",
				Help:      "Artifact uploads to remote storage by result.",
			},
			[]string{"result"},
		),
		Notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Partition-loaded events by result.",
			},
			[]string{"result"},
		),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run.",
		}),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Read API requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Read API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// WithRuntime adds the Go runtime and process collectors, for long-running servers.
func (m *Metrics) WithRuntime() *Metrics {
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records a stage duration and, when err is non-nil, a failure.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) Dropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RecordsDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) Normalized(n int) {
	if m == nil {
		return
	}
	m.RecordsNormalized.Add(float64(n))
}

func (m *Metrics) Merged(rows int) {
	if m == nil {
		return
	}
	m.RowsMerged.Add(float64(rows))
}

func (m *Metrics) Skipped() {
	if m == nil {
		return
	}
	m.ArtifactsSkipped.Inc()
}

func (m *Metrics) Replicated(result string) {
	if m == nil {
		return
	}
	m.Replications.WithLabelValues(result).Inc()
}

func (m *Metrics) Notified(ok bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) Succeeded(at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes every collected metric to path in the text exposition
// format understood by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
