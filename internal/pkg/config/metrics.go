package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics counts configuration fallbacks for one component. Names are
// prefixed with the component, e.g. worker_config_fallbacks_total.
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge
}

// NewConfigMetricsWith registers the metrics for component on reg.
// Registering the same component twice on one registerer panics.
func NewConfigMetricsWith(component string, reg prometheus.Registerer) *ConfigMetrics {
	return newConfigMetrics(component, promauto.With(reg))
}

func newConfigMetrics(component string, f promauto.Factory) *ConfigMetrics {
	opts := func(name, help string) (string, string) {
		return component + "_config_" + name, help
	}
	gauge := func(name, help string) prometheus.Gauge {
		n, h := opts(name, help)
		return f.NewGauge(prometheus.GaugeOpts{Name: n, Help: h})
	}
	counter := func(name, help string) *prometheus.CounterVec {
		n, h := opts(name, help)
		return f.NewCounterVec(prometheus.CounterOpts{Name: n, Help: h}, []string{"field"})
	}
	return &ConfigMetrics{
		LoadTimestamp:         gauge("load_timestamp", "Unix time of the last configuration load"),
		ValidationErrorsTotal: counter("validation_errors_total", "Rejected configuration values by field"),
		FallbacksTotal:        counter("fallbacks_total", "Defaults applied in place of rejected values, by field"),
		FallbackActive:        gauge("fallback_active", "1 while any field runs on a fallback default"),
	}
}

func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// RecordLoad marks a finished load.
func (m *ConfigMetrics) RecordLoad(fallbackActive bool) {
	m.LoadTimestamp.SetToCurrentTime()
	if fallbackActive {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
