// Package metrics provides Prometheus instrumentation for nebula-backup.
// Every stage of a run (fetch, serialize, transfer) records into the
// package-level collectors below, which are registered with the default
// registry on import.
//
// # Basic Usage
//
//	// Count records pulled from a source
//	metrics.RecordsFetched.WithLabelValues("user.tsv").Add(float64(n))
//
//	// Time an upload
//	timer := metrics.NewTimer("upload")
//	id, err := backend.Upload(ctx, path, folder)
//	metrics.UploadLatency.WithLabelValues("drive").Observe(timer.Stop().Seconds())
//
// One-shot runs have no scrape window, so Push sends the default registry to
// a Prometheus Pushgateway at the end of the run.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ajitpratap0/nebula-backup/pkg/errors"
)

var (
	// RecordsFetched counts records accumulated per source.
	// Labels: source (output name)
	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_records_fetched_total",
			Help: "Total number of records fetched from the source API",
		},
		[]string{"source"},
	)

	// APIRequests counts page requests by response status.
	// Labels: source, status (HTTP status code or "error")
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_api_requests_total",
			Help: "Total number of page requests sent to the source API",
		},
		[]string{"source", "status"},
	)

	// APIRequestLatency observes page request latency in seconds.
	// Labels: host
	APIRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_backup_api_request_duration_seconds",
			Help:    "Source API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"host"},
	)

	// RateLimitBackoffs counts 429 responses that caused a backoff.
	// Labels: source
	RateLimitBackoffs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_rate_limit_backoffs_total",
			Help: "Total number of rate-limit backoffs",
		},
		[]string{"source"},
	)

	// FetchStops counts why pagination ended.
	// Labels: source, reason
	FetchStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_fetch_stops_total",
			Help: "Pagination terminations by reason",
		},
		[]string{"source", "reason"},
	)

	// BytesWritten counts bytes of serialized artifacts.
	// Labels: source
	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_artifact_bytes_total",
			Help: "Total bytes written to local artifacts",
		},
		[]string{"source"},
	)

	// Uploads counts upload attempts.
	// Labels: backend, status (success/failure)
	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_uploads_total",
			Help: "Total number of artifact uploads",
		},
		[]string{"backend", "status"},
	)

	// UploadLatency observes upload duration in seconds.
	// Labels: backend
	UploadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_backup_upload_duration_seconds",
			Help:    "Artifact upload duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"backend"},
	)

	// SourceOutcomes counts per-source results of a run.
	// Labels: source, status (uploaded/no_data/failed)
	SourceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_source_outcomes_total",
			Help: "Per-source outcomes of backup runs",
		},
		[]string{"source", "status"},
	)

	// Runs counts backup runs.
	// Labels: status (completed/failed)
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_backup_runs_total",
			Help: "Total number of backup runs",
		},
		[]string{"status"},
	)

	// RunDuration observes full run duration in seconds.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nebula_backup_run_duration_seconds",
			Help:    "Backup run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	// LastRunTimestamp is the unix time of the last finished run.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nebula_backup_last_run_timestamp_seconds",
			Help: "Unix time of the last finished backup run",
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Push sends every metric of the default registry to a Pushgateway under
// the given job name.
func Push(ctx context.Context, gatewayURL, job string) error {
	return PushGatherer(ctx, gatewayURL, job, prometheus.DefaultGatherer)
}

// PushGatherer is Push for an explicit gatherer.
func PushGatherer(ctx context.Context, gatewayURL, job string, g prometheus.Gatherer) error {
	if err := push.New(gatewayURL, job).Gatherer(g).PushContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to push metrics")
	}
	return nil
}
