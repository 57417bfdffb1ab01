package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"grant-insight/internal/resilience/circuitbreaker"
	"grant-insight/internal/usecase/queue"
)

// SnapshotFunc reports component state included in readiness responses.
type SnapshotFunc func() map[string]any

// QueueSnapshot reports the processor's progress and the provider breaker state.
func QueueSnapshot(p *queue.Processor, cb *circuitbreaker.CircuitBreaker) SnapshotFunc {
	return func() map[string]any {
		return map[string]any{
			"queue": map[string]any{
				"pending":  p.Pending(),
				"draining": p.Draining(),
				"progress": p.Progress(),
			},
			"breaker": cb.Snapshot(),
		}
	}
}

// HealthServer serves liveness and readiness probes.
//
//   - GET /health: always 200
//   - GET /health/ready: 200 once SetReady(true), 503 otherwise; both carry the snapshot
type HealthServer struct {
	addr     string
	logger   *slog.Logger
	isReady  atomic.Bool
	snapshot SnapshotFunc
	server   *http.Server
}

type healthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components,omitempty"`
}

// NewHealthServer creates a server that is not ready yet. snapshot may be nil.
func NewHealthServer(addr string, logger *slog.Logger, snapshot SnapshotFunc) *HealthServer {
	return &HealthServer{
		addr:     addr,
		logger:   logger,
		snapshot: snapshot,
	}
}

// Handler returns the probe routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleLiveness)
	mux.HandleFunc("GET /health/ready", h.handleReadiness)
	return mux
}

// Start serves until ctx is cancelled, then shuts down within 5 seconds.
// It returns http.ErrServerClosed after a graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return err
		}
		h.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.snapshot != nil {
		resp.Components = h.snapshot()
	}
	if !h.isReady.Load() {
		resp.Status = "not ready"
		h.write(w, http.StatusServiceUnavailable, resp)
		return
	}
	h.write(w, http.StatusOK, resp)
}

func (h *HealthServer) write(w http.ResponseWriter, status int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
