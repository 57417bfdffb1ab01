package config

import "log/slog"

// Tracker logs and counts the fallbacks of one configuration load.
// A nil metrics only logs.
type Tracker struct {
	logger  *slog.Logger
	metrics *ConfigMetrics
	applied bool
}

func NewTracker(logger *slog.Logger, metrics *ConfigMetrics) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger, metrics: metrics}
}

// Track records r under field and returns its value.
func Track[T any](t *Tracker, field string, r Result[T]) T {
	if r.FallbackApplied {
		t.applied = true
		if t.metrics != nil {
			t.metrics.RecordValidationError(field)
			t.metrics.RecordFallback(field)
		}
		for _, w := range r.Warnings {
			t.logger.Warn("configuration fallback applied", slog.String("field", field), slog.String("warning", w))
		}
	}
	return r.Value
}

// FallbackApplied reports whether any tracked field fell back.
func (t *Tracker) FallbackApplied() bool { return t.applied }

// Done publishes the load to metrics.
func (t *Tracker) Done() {
	if t.metrics != nil {
		t.metrics.RecordLoad(t.applied)
	}
}
