package http

import (
	"net/http"

	"grant-insight/internal/handler/http/respond"
	"grant-insight/internal/resilience/circuitbreaker"
	"grant-insight/internal/usecase/queue"
)

// QueueStats is the read-only view of the background processor.
// *queue.Processor satisfies it.
type QueueStats interface {
	Pending() int
	Draining() bool
	Progress() queue.Progress
}

// AIHealthHandler reports the state of the provider breaker and the analysis
// queue. An open breaker does not make the service unhealthy, because callers
// still receive fallback results; it only withdraws readiness.
type AIHealthHandler struct {
	provider string
	breaker  *circuitbreaker.CircuitBreaker
	queue    QueueStats
}

// NewAIHealthHandler builds the handler. queue may be nil.
func NewAIHealthHandler(provider string, breaker *circuitbreaker.CircuitBreaker, queue QueueStats) *AIHealthHandler {
	return &AIHealthHandler{provider: provider, breaker: breaker, queue: queue}
}

// AIHealthResponse is the body of the AI health endpoints.
type AIHealthResponse struct {
	Status   string                   `json:"status"`
	Provider string                   `json:"provider"`
	Message  string                   `json:"message,omitempty"`
	Breaker  *circuitbreaker.Snapshot `json:"breaker,omitempty"`
	Queue    *QueueSnapshot           `json:"queue,omitempty"`
	Ready    *bool                    `json:"ready,omitempty"`
}

// QueueSnapshot is the queue section of AIHealthResponse.
type QueueSnapshot struct {
	Pending  int            `json:"pending"`
	Draining bool           `json:"draining"`
	Progress queue.Progress `json:"progress"`
}

// Health serves GET /health/ai. It answers 200 unless no breaker is wired;
// an open breaker is reported as "degraded".
func (h *AIHealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := h.snapshot()
	code := http.StatusOK
	if resp.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, resp)
}

// Ready serves GET /health/ai/ready: 503 while the breaker is open.
func (h *AIHealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	resp := h.snapshot()
	ready := resp.Status == statusHealthy
	resp.Ready = &ready
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, resp)
}

func (h *AIHealthHandler) snapshot() AIHealthResponse {
	resp := AIHealthResponse{Status: statusHealthy, Provider: h.provider}
	if h.breaker == nil {
		resp.Status = statusUnhealthy
		resp.Message = "circuit breaker not configured"
		return resp
	}

	snap := h.breaker.Snapshot()
	resp.Breaker = &snap
	if h.breaker.IsOpen() {
		resp.Status = statusDegraded
		resp.Message = "circuit breaker open, serving fallback results"
	} else if snap.State != "closed" {
		resp.Status = statusDegraded
		resp.Message = "circuit breaker probing provider"
	}

	if h.queue != nil {
		resp.Queue = &QueueSnapshot{
			Pending:  h.queue.Pending(),
			Draining: h.queue.Draining(),
			Progress: h.queue.Progress(),
		}
	}
	return resp
}
