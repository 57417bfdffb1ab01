package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"grant-insight/internal/app"
	"grant-insight/internal/config"
	hhttp "grant-insight/internal/handler/http"
	hanalysis "grant-insight/internal/handler/http/analysis"
	"grant-insight/internal/handler/http/requestid"
	"grant-insight/internal/infra/db"
	workerPkg "grant-insight/internal/infra/worker"
	"grant-insight/internal/observability/logging"
	"grant-insight/internal/observability/metrics"
	"grant-insight/internal/observability/tracing"
	envconfig "grant-insight/internal/pkg/config"
	"grant-insight/internal/usecase/queue"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = 60 * time.Second
	shutdownTimeout       = 10 * time.Second
)

func main() {
	logger := logging.NewLogger("api")
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("api exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Setup("grant-insight-api")
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	aiConfig, err := config.LoadAIConfig()
	if err != nil {
		return fmt.Errorf("load ai configuration: %w", err)
	}

	database, err := openDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	qcfg, err := queueConfig(logger)
	if err != nil {
		return fmt.Errorf("load queue configuration: %w", err)
	}

	// The queue is in-memory, so documents enqueued through this process are
	// drained by this process.
	core, err := app.NewCore(database, aiConfig, qcfg, logger)
	if err != nil {
		return fmt.Errorf("build analysis core: %w", err)
	}
	defer core.Close()

	runCtx, cancelRun := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := core.Processor.Run(runCtx); err != nil {
			logger.Error("queue processor stopped", slog.Any("error", err))
		}
	}()
	defer func() {
		cancelRun()
		wg.Wait()
	}()

	tr := envconfig.NewTracker(logger, nil)
	port := envconfig.Track(tr, "api_port",
		envconfig.LoadEnvInt("API_PORT", defaultPort, envconfig.IntRange(1, 65535)))
	timeout := envconfig.Track(tr, "api_request_timeout",
		envconfig.LoadEnvDuration("API_REQUEST_TIMEOUT", defaultRequestTimeout, envconfig.DurationRange(time.Second, 10*time.Minute)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newHandler(logger, database, core, version(), timeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, logger, srv, database)
}

// queueConfig reads the QUEUE_* settings the worker uses, so both processes
// apply the same batch size, pause and drain interval.
func queueConfig(logger *slog.Logger) (queue.Config, error) {
	wc, err := workerPkg.LoadConfigFromEnv(logger, nil)
	if err != nil {
		return queue.Config{}, err
	}
	qcfg := wc.QueueConfig()
	logger.Info("queue configuration loaded",
		slog.Int("batch_size", qcfg.BatchSize),
		slog.Duration("batch_pause", qcfg.BatchPause),
		slog.Duration("drain_interval", qcfg.DrainInterval))
	return qcfg, nil
}

// newHandler mounts the routes and wraps them in the middleware chain.
// MetricsMiddleware wraps the mux directly so it observes the matched pattern.
func newHandler(logger *slog.Logger, database *sql.DB, core *app.Core, version string, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", &hhttp.HealthHandler{DB: database, Version: version, StoreBreaker: core.StoreBreaker})
	mux.Handle("GET /ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("GET /live", hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	aiHealth := hhttp.NewAIHealthHandler(core.Provider.Name(), core.Breaker, core.Processor)
	mux.HandleFunc("GET /health/ai", aiHealth.Health)
	mux.HandleFunc("GET /health/ai/ready", aiHealth.Ready)

	hanalysis.Register(mux, core.Processor, core.Service, logger)

	return hhttp.Chain(mux,
		hhttp.Recover(logger),
		requestid.Middleware,
		hhttp.Logging(logger),
		tracing.Middleware,
		hhttp.Timeout(timeout),
		hhttp.MetricsMiddleware,
		hhttp.LimitRequestBody(hhttp.DefaultMaxBodyBytes),
	)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, logger *slog.Logger, srv *http.Server, database *sql.DB) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.UpdateDBStats(database.Stats())
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info("shutting down api server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			logger.Info("api server stopped")
			return nil
		}
	}
}

func openDatabase(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	poolConfig, warnings := db.ConnectionConfigFromEnv()
	for _, w := range warnings {
		logger.Warn("database pool configuration fallback applied", slog.String("warning", w))
	}

	database, err := db.Open(ctx, os.Getenv("DATABASE_URL"), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.MigrateUp(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

func version() string {
	return envconfig.LoadEnvString("VERSION", "dev")
}
