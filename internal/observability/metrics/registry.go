// Package metrics holds the process-wide Prometheus collectors that no single
// component owns: HTTP traffic and the database connection pool.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "grant_insight"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency. Provider-backed routes run for seconds, hence the wide buckets.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method", "route"})

	HTTPResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response body size",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
	}, []string{"method", "route"})

	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "HTTP requests currently being served",
	})
)

var (
	// DBConnections is labelled by state: open, in_use or idle.
	DBConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections",
		Help:      "Database pool connections by state",
	}, []string{"state"})

	DBWaitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_wait_seconds",
		Help:      "Cumulative time spent waiting for a pooled connection",
	})

	DBWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_wait_count",
		Help:      "Cumulative number of waits for a pooled connection",
	})
)

// RecordHTTPRequest records a finished request. route must be a route pattern,
// never the raw path.
func RecordHTTPRequest(method, route, status string, d time.Duration, bytes int) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	if bytes > 0 {
		HTTPResponseSize.WithLabelValues(method, route).Observe(float64(bytes))
	}
}

// UpdateDBStats publishes a pool snapshot.
func UpdateDBStats(s sql.DBStats) {
	DBConnections.WithLabelValues("open").Set(float64(s.OpenConnections))
	DBConnections.WithLabelValues("in_use").Set(float64(s.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(s.Idle))
	DBWaitSeconds.Set(s.WaitDuration.Seconds())
	DBWaitCount.Set(float64(s.WaitCount))
}
