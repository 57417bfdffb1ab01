package circuitbreaker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

type breakerMetrics struct {
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
}

var (
	breakerMetricsInstance *breakerMetrics
	breakerMetricsOnce     sync.Once
)

// registerOrReuse registers c, returning the already registered collector on conflict.
func registerOrReuse[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// getBreakerMetrics returns the process-wide breaker collectors.
// Collectors are shared because every breaker labels its samples by circuit name.
func getBreakerMetrics() *breakerMetrics {
	breakerMetricsOnce.Do(func() {
		breakerMetricsInstance = &breakerMetrics{
			transitions: registerOrReuse(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "circuit_breaker_state_changes_total",
				Help: "Total number of circuit breaker state transitions",
			}, []string{"circuit", "from", "to"})),
			state: registerOrReuse(prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
			}, []string{"circuit"})),
		}
	})
	return breakerMetricsInstance
}

func (m *breakerMetrics) recordTransition(name string, from, to gobreaker.State) {
	m.transitions.WithLabelValues(name, from.String(), to.String()).Inc()
	m.setState(name, to)
}

func (m *breakerMetrics) setState(name string, s gobreaker.State) {
	var v float64
	switch s {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.state.WithLabelValues(name).Set(v)
}
