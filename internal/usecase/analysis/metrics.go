package analysis

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type executorMetrics struct {
	degraded *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	executorMetricsInstance *executorMetrics
	executorMetricsOnce     sync.Once
)

func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return h
}

func getExecutorMetrics() *executorMetrics {
	executorMetricsOnce.Do(func() {
		executorMetricsInstance = &executorMetrics{
			degraded: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "analysis_degraded_total",
				Help: "Total number of fallback results served, by operation and failure reason",
			}, []string{"kind", "reason"}),
			duration: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "analysis_operation_duration_seconds",
				Help:    "End-to-end duration of analysis operations, cache hits included",
				Buckets: prometheus.ExponentialBuckets(0.005, 3, 10),
			}, []string{"operation", "source"}),
		}
	})
	return executorMetricsInstance
}
