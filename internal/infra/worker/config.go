package worker

import (
	"fmt"
	"log/slog"
	"time"

	"grant-insight/internal/pkg/config"
	"grant-insight/internal/resilience/retry"
	"grant-insight/internal/usecase/queue"
)

// WorkerConfig controls the background processor and its seeding schedule.
//
// Loaded by LoadConfigFromEnv, which never fails: invalid values fall back to
// DefaultConfig with a warning and a worker_config_fallbacks_total increment.
type WorkerConfig struct {
	// BatchSize bounds how many subjects one batch analyzes concurrently.
	// Range: 1-50. Default: 5
	BatchSize int

	// BatchPause separates consecutive batches within a drain.
	// Range: 0-1m. Default: 2s
	BatchPause time.Duration

	// DrainInterval is how often the queue is drained when nothing kicks it.
	// Range: 1s-1h. Default: 30s
	DrainInterval time.Duration

	// SeedSchedule is the cron expression for enqueueing documents that lack
	// a settled analysis. Default: "*/15 * * * *"
	SeedSchedule string

	// SeedLimit caps how many pending documents one seed run enqueues.
	// Range: 1-10000. Default: 500
	SeedLimit int

	// Timezone is the IANA zone SeedSchedule is evaluated in. Default: "UTC"
	Timezone string

	// HealthPort serves /health and /health/ready.
	// Range: 1024-65535. Default: 9091
	HealthPort int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:     5,
		BatchPause:    2 * time.Second,
		DrainInterval: 30 * time.Second,
		SeedSchedule:  "*/15 * * * *",
		SeedLimit:     500,
		Timezone:      "UTC",
		HealthPort:    9091,
	}
}

// Validate checks every field and reports all failures together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.Between(c.BatchSize, 1, 50); err != nil {
		errors = append(errors, fmt.Errorf("batch size: %w", err))
	}
	if err := config.Between(c.BatchPause, 0, time.Minute); err != nil {
		errors = append(errors, fmt.Errorf("batch pause: %w", err))
	}
	if err := config.Between(c.DrainInterval, time.Second, time.Hour); err != nil {
		errors = append(errors, fmt.Errorf("drain interval: %w", err))
	}
	if err := config.ValidateCronSchedule(c.SeedSchedule); err != nil {
		errors = append(errors, fmt.Errorf("seed schedule: %w", err))
	}
	if err := config.Between(c.SeedLimit, 1, 10000); err != nil {
		errors = append(errors, fmt.Errorf("seed limit: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}
	if err := config.Between(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// QueueConfig converts the worker settings into processor settings.
func (c *WorkerConfig) QueueConfig() queue.Config {
	return queue.Config{
		BatchSize:     c.BatchSize,
		BatchPause:    c.BatchPause,
		DrainInterval: c.DrainInterval,
		SeedLimit:     c.SeedLimit,
		Persist:       retry.DBConfig(),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfigFromEnv loads the worker configuration with fail-open semantics.
//
// Environment variables:
//   - QUEUE_BATCH_SIZE, QUEUE_BATCH_PAUSE, QUEUE_DRAIN_INTERVAL
//   - QUEUE_SEED_SCHEDULE, QUEUE_SEED_LIMIT
//   - WORKER_TIMEZONE, WORKER_HEALTH_PORT
//
// The returned error is always nil.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	var cm *config.ConfigMetrics
	if metrics != nil {
		cm = metrics.ConfigMetrics
	}
	tr := config.NewTracker(logger, cm)

	cfg.BatchSize = config.Track(tr, "batch_size",
		config.LoadEnvInt("QUEUE_BATCH_SIZE", cfg.BatchSize, config.IntRange(1, 50)))
	cfg.BatchPause = config.Track(tr, "batch_pause",
		config.LoadEnvDuration("QUEUE_BATCH_PAUSE", cfg.BatchPause, config.DurationRange(0, time.Minute)))
	cfg.DrainInterval = config.Track(tr, "drain_interval",
		config.LoadEnvDuration("QUEUE_DRAIN_INTERVAL", cfg.DrainInterval, config.DurationRange(time.Second, time.Hour)))
	cfg.SeedSchedule = config.Track(tr, "seed_schedule",
		config.LoadEnvWithFallback("QUEUE_SEED_SCHEDULE", cfg.SeedSchedule, config.ValidateCronSchedule))
	cfg.SeedLimit = config.Track(tr, "seed_limit",
		config.LoadEnvInt("QUEUE_SEED_LIMIT", cfg.SeedLimit, config.IntRange(1, 10000)))
	cfg.Timezone = config.Track(tr, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))
	cfg.HealthPort = config.Track(tr, "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, config.IntRange(1024, 65535)))
	tr.Done()

	return &cfg, nil
}
