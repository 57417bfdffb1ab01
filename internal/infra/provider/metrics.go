package provider

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records one provider request.
type MetricsRecorder interface {
	RecordRequest(provider, outcome string, duration time.Duration)
}

type prometheusMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	metricsInstance *prometheusMetrics
	metricsOnce     sync.Once
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

// NewPrometheusMetrics returns the process-wide recorder.
func NewPrometheusMetrics() MetricsRecorder {
	metricsOnce.Do(func() {
		metricsInstance = &prometheusMetrics{
			requests: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "ai_provider_requests_total",
				Help: "Total number of text-generation requests by provider and outcome",
			}, []string{"provider", "outcome"}),
			duration: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "ai_provider_request_duration_seconds",
				Help:    "Latency of text-generation requests",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
			}, []string{"provider"}),
		}
	})
	return metricsInstance
}

func (m *prometheusMetrics) RecordRequest(provider, outcome string, d time.Duration) {
	m.requests.WithLabelValues(provider, outcome).Inc()
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}
