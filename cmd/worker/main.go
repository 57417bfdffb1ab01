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
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"grant-insight/internal/app"
	"grant-insight/internal/config"
	"grant-insight/internal/handler/http/respond"
	"grant-insight/internal/infra/db"
	workerPkg "grant-insight/internal/infra/worker"
	"grant-insight/internal/observability/logging"
	"grant-insight/internal/observability/tracing"
	"grant-insight/internal/usecase/queue"
)

const seedTimeout = time.Minute

func main() {
	logger := logging.NewLogger("worker")
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker exited with error", slog.String("error", respond.SanitizeError(err)))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Setup("grant-insight-worker")
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics(prometheus.DefaultRegisterer)
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		return fmt.Errorf("load worker configuration: %w", err)
	}
	logger.Info("worker configuration loaded",
		slog.Int("batch_size", workerConfig.BatchSize),
		slog.Duration("batch_pause", workerConfig.BatchPause),
		slog.Duration("drain_interval", workerConfig.DrainInterval),
		slog.String("seed_schedule", workerConfig.SeedSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("health_port", workerConfig.HealthPort))

	// AI configuration fails closed: a worker with a broken provider setup must not start.
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

	core, err := app.NewCore(database, aiConfig, workerConfig.QueueConfig(), logger,
		queue.WithOnProgress(func(p queue.Progress) {
			logger.Debug("drain progress",
				slog.Int("batch", p.CurrentBatch),
				slog.Int("total_batches", p.TotalBatches),
				slog.Int("processed", p.Processed),
				slog.Int("errors", p.Errors))
		}))
	if err != nil {
		return fmt.Errorf("build analysis core: %w", err)
	}
	defer core.Close()

	go func() {
		if err := serveMetrics(ctx, logger, database); err != nil {
			logger.Error("metrics endpoint stopped", slog.Any("error", err))
		}
	}()

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger, workerPkg.QueueSnapshot(core.Processor, core.Breaker))
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler := cron.New(cron.WithLocation(workerConfig.Location()))
	if _, err := scheduler.AddFunc(workerConfig.SeedSchedule, func() {
		runSeed(ctx, logger, core.Processor, workerMetrics)
	}); err != nil {
		return fmt.Errorf("schedule seeding: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// Pick up the backlog left by a previous run before waiting for the schedule.
	runSeed(ctx, logger, core.Processor, workerMetrics)

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("provider", core.Provider.Name()),
		slog.String("seed_schedule", workerConfig.SeedSchedule),
		slog.String("timezone", workerConfig.Timezone))

	err = core.Processor.Run(ctx)
	healthServer.SetReady(false)
	logger.Info("worker shutting down", slog.Int("pending", core.Processor.Pending()))
	return err
}

// openDatabase connects with the pool settings from the environment and
// applies the schema.
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

// runSeed enqueues documents without a settled analysis.
func runSeed(ctx context.Context, logger *slog.Logger, p *queue.Processor, metrics *workerPkg.WorkerMetrics) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	seedCtx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()

	queued, err := p.Seed(seedCtx)
	metrics.RecordSeedRun(err, queued, time.Since(start).Seconds())
	if err != nil {
		logger.Error("queue seeding failed", slog.String("error", respond.SanitizeError(err)))
		return
	}
	logger.Info("queue seeding completed",
		slog.Int("queued", queued),
		slog.Int("pending", p.Pending()),
		slog.Duration("duration", time.Since(start)))
}
