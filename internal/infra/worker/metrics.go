package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"grant-insight/internal/pkg/config"
)

// WorkerMetrics tracks configuration loads and seed runs.
//
// Embedded from ConfigMetrics:
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total{field}
//   - worker_config_fallbacks_total{field}
//   - worker_config_fallback_active
//
// Seed runs:
//   - worker_seed_runs_total{status}
//   - worker_seed_duration_seconds
//   - worker_seed_subjects_total
//   - worker_seed_last_success_timestamp
type WorkerMetrics struct {
	*config.ConfigMetrics

	SeedRunsTotal            *prometheus.CounterVec
	SeedDurationSeconds      prometheus.Histogram
	SeedSubjectsTotal        prometheus.Counter
	SeedLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics on reg. Pass
// prometheus.DefaultRegisterer in production; registering twice on the same
// registerer panics.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWith("worker", reg),

		SeedRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_seed_runs_total",
			Help: "Total number of queue seed runs by status (success/failure)",
		}, []string{"status"}),

		SeedDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_seed_duration_seconds",
			Help:    "Duration of queue seed runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		SeedSubjectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_seed_subjects_total",
			Help: "Total number of subjects newly enqueued by seed runs",
		}),

		SeedLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_seed_last_success_timestamp",
			Help: "Unix timestamp of the last successful seed run",
		}),
	}
}

// RecordSeedRun records one seed run. queued is ignored on failure.
func (m *WorkerMetrics) RecordSeedRun(err error, queued int, seconds float64) {
	m.SeedDurationSeconds.Observe(seconds)
	if err != nil {
		m.SeedRunsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.SeedRunsTotal.WithLabelValues("success").Inc()
	m.SeedSubjectsTotal.Add(float64(queued))
	m.SeedLastSuccessTimestamp.SetToCurrentTime()
}
