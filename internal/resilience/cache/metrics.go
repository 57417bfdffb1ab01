package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type cacheMetrics struct {
	requests *prometheus.CounterVec
}

var (
	cacheMetricsInstance *cacheMetrics
	cacheMetricsOnce     sync.Once
)

func getCacheMetrics() *cacheMetrics {
	cacheMetricsOnce.Do(func() {
		requests := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_cache_requests_total",
			Help: "Total number of analysis cache lookups by result (hit, miss)",
		}, []string{"result"})
		if err := prometheus.Register(requests); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				requests = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
		cacheMetricsInstance = &cacheMetrics{requests: requests}
	})
	return cacheMetricsInstance
}

func (m *cacheMetrics) hit()  { m.requests.WithLabelValues("hit").Inc() }
func (m *cacheMetrics) miss() { m.requests.WithLabelValues("miss").Inc() }
