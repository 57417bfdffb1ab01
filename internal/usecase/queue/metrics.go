package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type queueMetrics struct {
	depth         prometheus.Gauge
	jobs          *prometheus.CounterVec
	drainDuration prometheus.Histogram
}

var (
	queueMetricsInstance *queueMetrics
	queueMetricsOnce     sync.Once
)

func register[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func getQueueMetrics() *queueMetrics {
	queueMetricsOnce.Do(func() {
		queueMetricsInstance = &queueMetrics{
			depth: register(prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "analysis_queue_depth",
				Help: "Number of subjects waiting for analysis",
			})),
			jobs: register(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "analysis_jobs_total",
				Help: "Processed analysis jobs by outcome (completed, degraded, skipped, error, not_found)",
			}, []string{"status"})),
			drainDuration: register(prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "analysis_drain_duration_seconds",
				Help:    "Duration of one queue drain",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			})),
		}
	})
	return queueMetricsInstance
}
