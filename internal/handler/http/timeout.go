package http

import (
	"net/http"
	"time"
)

const timeoutBody = `{"error":"request timeout"}`

// Timeout bounds each request to d. Once d elapses the handler's context is
// cancelled and the client receives 503 with a JSON error body; later writes
// by the handler fail with http.ErrHandlerTimeout. A non-positive d disables it.
//
// Timeout replaces the request, so it must sit outside MetricsMiddleware for
// the route pattern to reach the metrics labels.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.TimeoutHandler(next, d, timeoutBody)
	}
}
