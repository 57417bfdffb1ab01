package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	envconfig "grant-insight/internal/pkg/config"
	"grant-insight/internal/observability/metrics"
)

const (
	defaultMetricsPort = 9090
	poolGaugeInterval  = 15 * time.Second
	metricsGracePeriod = 5 * time.Second
)

// serveMetrics exposes GET /metrics on METRICS_PORT and keeps the connection
// pool gauges fresh. It returns once ctx is done and the listener has drained.
func serveMetrics(ctx context.Context, logger *slog.Logger, database *sql.DB) error {
	port := envconfig.Track(envconfig.NewTracker(logger, nil), "metrics_port",
		envconfig.LoadEnvInt("METRICS_PORT", defaultMetricsPort, envconfig.IntRange(1, 65535)))

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("metrics endpoint listening", slog.Int("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		tick := time.NewTicker(poolGaugeInterval)
		defer tick.Stop()
		for {
			metrics.UpdateDBStats(database.Stats())
			select {
			case <-gctx.Done():
				return nil
			case <-tick.C:
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), metricsGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
