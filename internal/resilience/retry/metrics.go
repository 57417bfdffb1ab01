package retry

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type retryMetrics struct {
	retries  *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

var (
	retryMetricsInstance *retryMetrics
	retryMetricsOnce     sync.Once
)

func register[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func getRetryMetrics() *retryMetrics {
	retryMetricsOnce.Do(func() {
		retryMetricsInstance = &retryMetrics{
			retries: register(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "store_write_retries_total",
				Help: "Total number of durable-store write retries by operation",
			}, []string{"op"})),
			outcomes: register(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "store_write_retry_outcomes_total",
				Help: "Final outcome of writes that failed at least once (recovered, permanent, exhausted, canceled)",
			}, []string{"op", "outcome"})),
		}
	})
	return retryMetricsInstance
}

func (m *retryMetrics) outcome(op, outcome string) {
	m.outcomes.WithLabelValues(op, outcome).Inc()
}
