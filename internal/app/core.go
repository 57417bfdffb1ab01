// Package app wires the analysis core shared by the api and worker binaries:
// one provider, one breaker, one cache and one queue per process.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"grant-insight/internal/config"
	"grant-insight/internal/infra/adapter/persistence/postgres"
	"grant-insight/internal/infra/provider"
	"grant-insight/internal/repository"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/resilience/circuitbreaker"
	"grant-insight/internal/usecase/analysis"
	"grant-insight/internal/usecase/queue"
)

// Core holds the constructed components. Fields are read-only after NewCore.
type Core struct {
	AI *config.AIConfig

	Provider  analysis.Provider
	Breaker   *circuitbreaker.CircuitBreaker
	Cache     *cache.Store
	Executor  *analysis.Executor
	Service   *analysis.Service
	Processor *queue.Processor

	StoreBreaker *circuitbreaker.StoreBreaker
	Documents    repository.DocumentRepository
	Grants       repository.GrantRepository
	Analyses     repository.AnalysisRepository
}

// NewCore builds every component from db and the validated configurations.
func NewCore(db *sql.DB, ai *config.AIConfig, qcfg queue.Config, logger *slog.Logger, opts ...queue.Option) (*Core, error) {
	if db == nil {
		return nil, errors.New("app: database is required")
	}
	if ai == nil {
		return nil, errors.New("app: ai config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := qcfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: queue config: %w", err)
	}

	p, err := provider.New(ai.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	breakerCfg := ai.BreakerConfig()
	if err := breakerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: breaker config: %w", err)
	}
	breaker := circuitbreaker.New(breakerCfg, circuitbreaker.WithLogger(logger))

	store, err := cache.New(ai.CacheStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	storeBreaker := circuitbreaker.NewStoreBreaker(db, circuitbreaker.StoreConfig(), circuitbreaker.WithLogger(logger))
	c := &Core{
		AI:           ai,
		Provider:     p,
		Breaker:      breaker,
		Cache:        store,
		StoreBreaker: storeBreaker,
		Documents:    postgres.NewDocumentRepo(db),
		Grants:       postgres.NewGrantRepo(db),
		Analyses:     postgres.NewAnalysisRepo(storeBreaker),
	}
	c.Executor = analysis.NewExecutor(p, breaker, store)
	c.Service = analysis.NewService(c.Executor, c.Grants, analysis.ServiceConfig{TTLs: ai.TTLs()})

	opts = append([]queue.Option{queue.WithLogger(logger)}, opts...)
	c.Processor = queue.NewProcessor(c.Service, c.Documents, c.Analyses, qcfg, opts...)

	logger.Info("analysis core ready",
		slog.String("provider", p.Name()),
		slog.String("breaker", breakerCfg.Name),
		slog.Int("cache_max_entries", ai.Cache.MaxEntries),
		slog.Int("batch_size", qcfg.BatchSize))
	return c, nil
}

// Close releases the cache's background goroutines.
func (c *Core) Close() {
	c.Cache.Close()
}
