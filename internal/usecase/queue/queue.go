// Package queue runs document analyses in the background.
//
// Subjects are enqueued by id and drained in bounded batches. Job status is
// kept in memory only; completed and failed analyses are persisted to the
// analysis repository, which stays the source of truth across restarts.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/repository"
	"grant-insight/internal/resilience/retry"
)

// Status is the lifecycle state of one subject.
type Status string

const (
	StatusNotQueued  Status = "not_queued"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusNotFound   Status = "not_found"
)

// Terminal reports whether s is an end state of a drain.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusNotFound
}

// Analyzer produces the analysis of one document. *analysis.Service satisfies it.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, doc *entity.Document) (entity.AnalysisResult, error)
}

// Config tunes a Processor.
type Config struct {
	// BatchSize bounds how many subjects are processed concurrently before pausing.
	BatchSize int
	// BatchPause is the delay between consecutive batches of one drain.
	BatchPause time.Duration
	// DrainInterval is how often Run drains without being kicked.
	DrainInterval time.Duration
	// SeedLimit caps how many subjects one Seed call enqueues.
	SeedLimit int
	// Persist is the retry policy for writes to the analysis repository.
	Persist retry.Config
	// Retention is how long a settled subject stays in memory before StatusOf
	// answers from the analysis repository instead.
	Retention time.Duration
}

// DefaultConfig returns batches of 5 with a 2s pause, drained every 30s,
// keeping settled subjects in memory for an hour.
func DefaultConfig() Config {
	return Config{
		BatchSize:     5,
		BatchPause:    2 * time.Second,
		DrainInterval: 30 * time.Second,
		SeedLimit:     500,
		Persist:       retry.DBConfig(),
		Retention:     time.Hour,
	}
}

// Validate checks the fields a Processor cannot work without.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchPause < 0 {
		return fmt.Errorf("batch pause must not be negative, got %v", c.BatchPause)
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("drain interval must be positive, got %v", c.DrainInterval)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %v", c.Retention)
	}
	if err := c.Persist.Validate(); err != nil {
		return fmt.Errorf("persist policy: %w", err)
	}
	return nil
}

// EnqueueResult reports the outcome of Enqueue.
type EnqueueResult struct {
	Queued bool   `json:"queued"`
	Status Status `json:"status"`
}

// StatusResult is a point-in-time view of one subject.
type StatusResult struct {
	Processed bool                   `json:"processed"`
	Status    Status                 `json:"status"`
	Result    *entity.AnalysisResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Progress describes the current or last drain.
type Progress struct {
	Processed    int  `json:"processed"`
	Errors       int  `json:"errors"`
	CurrentBatch int  `json:"current_batch"`
	TotalBatches int  `json:"total_batches"`
	Running      bool `json:"running"`
}

type job struct {
	status     Status
	result     *entity.AnalysisResult
	errMsg     string
	degraded   bool
	finishedAt time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// WithOnProgress registers fn to be called after every batch.
func WithOnProgress(fn func(Progress)) Option {
	return func(p *Processor) { p.onProgress = fn }
}

// Processor is the deduplicating analysis queue.
type Processor struct {
	analyzer Analyzer
	docs     repository.DocumentRepository
	store    repository.AnalysisRepository
	cfg      Config

	logger     *slog.Logger
	now        func() time.Time
	onProgress func(Progress)
	metrics    *queueMetrics

	mu       sync.Mutex
	jobs     map[int64]*job
	pending  []int64
	progress Progress

	draining atomic.Bool
	kick     chan struct{}
}

// NewProcessor builds a Processor. Zero config fields take DefaultConfig values.
func NewProcessor(analyzer Analyzer, docs repository.DocumentRepository, store repository.AnalysisRepository, cfg Config, opts ...Option) *Processor {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if cfg.SeedLimit <= 0 {
		cfg.SeedLimit = def.SeedLimit
	}
	if cfg.Persist.MaxAttempts <= 0 {
		cfg.Persist = def.Persist
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}

	p := &Processor{
		analyzer: analyzer,
		docs:     docs,
		store:    store,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		metrics:  getQueueMetrics(),
		jobs:     make(map[int64]*job),
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue adds subjectID to the queue unless it is already queued, being
// processed, or completed with a non-degraded result in this process.
// Subjects in error or not_found may be enqueued again.
func (p *Processor) Enqueue(subjectID int64) EnqueueResult {
	p.mu.Lock()
	if j, ok := p.jobs[subjectID]; ok {
		switch {
		case j.status == StatusQueued, j.status == StatusProcessing:
			p.mu.Unlock()
			return EnqueueResult{Queued: false, Status: j.status}
		case j.status == StatusCompleted && !j.degraded:
			p.mu.Unlock()
			return EnqueueResult{Queued: false, Status: j.status}
		}
	}
	p.jobs[subjectID] = &job{status: StatusQueued}
	p.pending = append(p.pending, subjectID)
	depth := len(p.pending)
	p.mu.Unlock()

	p.metrics.depth.Set(float64(depth))
	select {
	case p.kick <- struct{}{}:
	default:
	}
	return EnqueueResult{Queued: true, Status: StatusQueued}
}

// StatusOf reports subjectID's state. Unknown subjects are looked up in the
// analysis repository; StatusOf never triggers processing.
func (p *Processor) StatusOf(ctx context.Context, subjectID int64) (StatusResult, error) {
	p.mu.Lock()
	j, ok := p.jobs[subjectID]
	var snap job
	if ok {
		snap = *j
	}
	p.mu.Unlock()

	if ok {
		return StatusResult{
			Processed: snap.status.Terminal(),
			Status:    snap.status,
			Result:    snap.result,
			Error:     snap.errMsg,
		}, nil
	}

	rec, err := p.store.Get(ctx, subjectID)
	if err != nil {
		return StatusResult{}, fmt.Errorf("lookup analysis %d: %w", subjectID, err)
	}
	if rec == nil {
		return StatusResult{Processed: false, Status: StatusNotQueued}, nil
	}
	if rec.Status == entity.AnalysisError {
		return StatusResult{Processed: true, Status: StatusError, Error: rec.ErrorMessage}, nil
	}
	return StatusResult{Processed: true, Status: StatusCompleted, Result: storedResult(rec)}, nil
}

// Progress returns the progress of the running or most recent drain.
func (p *Processor) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Pending returns the number of queued subjects.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Draining reports whether a drain is in progress.
func (p *Processor) Draining() bool { return p.draining.Load() }

func (p *Processor) setJob(subjectID int64, j *job) {
	if j.status.Terminal() {
		j.finishedAt = p.now()
	}
	p.mu.Lock()
	p.jobs[subjectID] = j
	p.mu.Unlock()
}

// prune forgets settled subjects older than Retention. Their outcome remains
// in the analysis repository, which StatusOf consults for unknown subjects.
func (p *Processor) prune() int {
	cutoff := p.now().Add(-p.cfg.Retention)
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, j := range p.jobs {
		if j.status.Terminal() && j.finishedAt.Before(cutoff) {
			delete(p.jobs, id)
			n++
		}
	}
	return n
}

func storedResult(rec *entity.AnalysisRecord) *entity.AnalysisResult {
	if rec.Result == nil {
		return nil
	}
	r := *rec.Result
	r.Source = entity.SourceStore
	r.Degraded = rec.Degraded
	return &r
}
