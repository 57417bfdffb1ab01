package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/observability/logging"
	"grant-insight/internal/observability/tracing"
	"grant-insight/internal/resilience/retry"
	"grant-insight/internal/utils/text"
)

const maxErrorMessageRunes = 500

// Run drains every DrainInterval and whenever Enqueue adds work, until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.DrainInterval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "queue processor started",
		slog.Int("batch_size", p.cfg.BatchSize),
		slog.Duration("batch_pause", p.cfg.BatchPause),
		slog.Duration("drain_interval", p.cfg.DrainInterval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("queue processor stopped", slog.Int("pending", p.Pending()))
			return nil
		case <-ticker.C:
			p.Drain(ctx)
		case <-p.kick:
			p.Drain(ctx)
		}
	}
}

// Seed enqueues subjects the document repository reports as lacking a
// settled analysis. It returns how many were newly queued.
func (p *Processor) Seed(ctx context.Context) (int, error) {
	ids, err := p.docs.ListPendingAnalysis(ctx, p.cfg.SeedLimit)
	if err != nil {
		return 0, fmt.Errorf("list pending analysis: %w", err)
	}
	queued := 0
	for _, id := range ids {
		if p.Enqueue(id).Queued {
			queued++
		}
	}
	p.logger.InfoContext(ctx, "queue seeded",
		slog.Int("candidates", len(ids)),
		slog.Int("queued", queued))
	return queued, nil
}

// Drain processes the subjects pending when it starts, BatchSize at a time,
// pausing BatchPause between batches. It returns false without doing anything
// if another drain is running. Subjects left when ctx is cancelled stay queued.
func (p *Processor) Drain(ctx context.Context) bool {
	if !p.draining.CompareAndSwap(false, true) {
		return false
	}
	defer p.draining.Store(false)

	ctx, span := tracing.GetTracer().Start(ctx, "queue.drain")
	defer span.End()

	start := time.Now()

	p.mu.Lock()
	snapshot := p.pending
	p.pending = nil
	batches := chunk(snapshot, p.cfg.BatchSize)
	p.progress = Progress{TotalBatches: len(batches), Running: len(batches) > 0}
	p.mu.Unlock()
	p.metrics.depth.Set(0)

	if n := p.prune(); n > 0 {
		p.logger.DebugContext(ctx, "settled subjects evicted", slog.Int("evicted", n))
	}

	if len(batches) == 0 {
		return true
	}

	logger := p.logger.With(slog.Int("subjects", len(snapshot)), slog.Int("batches", len(batches)))
	logger.InfoContext(ctx, "drain started")

	for i, batch := range batches {
		if i > 0 && !p.pause(ctx) {
			p.requeue(batches[i:])
			break
		}
		if ctx.Err() != nil {
			p.requeue(batches[i:])
			break
		}

		p.mu.Lock()
		p.progress.CurrentBatch = i + 1
		p.mu.Unlock()

		var g errgroup.Group
		for _, id := range batch {
			g.Go(func() error {
				p.process(ctx, id)
				return nil
			})
		}
		_ = g.Wait()

		if p.onProgress != nil {
			p.onProgress(p.Progress())
		}
	}

	p.mu.Lock()
	p.progress.Running = false
	final := p.progress
	p.mu.Unlock()

	duration := time.Since(start)
	p.metrics.drainDuration.Observe(duration.Seconds())
	span.SetAttributes(
		attribute.Int("queue.processed", final.Processed),
		attribute.Int("queue.errors", final.Errors),
		attribute.Int("queue.batches", final.CurrentBatch),
	)
	logger.InfoContext(ctx, "drain finished",
		slog.Int("processed", final.Processed),
		slog.Int("errors", final.Errors),
		slog.Int("batches_run", final.CurrentBatch),
		slog.Duration("duration", duration))
	return true
}

func (p *Processor) pause(ctx context.Context) bool {
	if p.cfg.BatchPause <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.cfg.BatchPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// requeue puts unprocessed batches back at the front of the queue.
func (p *Processor) requeue(batches [][]int64) {
	var ids []int64
	for _, b := range batches {
		ids = append(ids, b...)
	}
	p.mu.Lock()
	p.pending = append(ids, p.pending...)
	depth := len(p.pending)
	p.mu.Unlock()
	p.metrics.depth.Set(float64(depth))
}

// process runs one subject to a terminal state.
func (p *Processor) process(ctx context.Context, id int64) {
	logger := p.logger.With(slog.Int64("document_id", id))
	ctx = logging.WithLogger(ctx, logger)
	p.setJob(id, &job{status: StatusProcessing})

	rec, err := p.store.Get(ctx, id)
	if err != nil {
		logger.WarnContext(ctx, "durable lookup failed, analyzing anyway", slog.Any("error", err))
	}
	if rec.Settled() {
		p.setJob(id, &job{status: StatusCompleted, result: storedResult(rec)})
		p.finish(StatusCompleted, "skipped")
		logger.DebugContext(ctx, "analysis already stored")
		return
	}

	doc, err := p.docs.Get(ctx, id)
	if err != nil {
		p.fail(ctx, logger, id, err)
		return
	}
	if doc == nil {
		p.setJob(id, &job{status: StatusNotFound})
		p.finish(StatusNotFound, string(StatusNotFound))
		logger.WarnContext(ctx, "document not found, dropped")
		return
	}

	result, err := p.analyzer.AnalyzeDocument(ctx, doc)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			p.setJob(id, &job{status: StatusQueued})
			p.requeue([][]int64{{id}})
			return
		}
		p.fail(ctx, logger, id, err)
		return
	}

	record := &entity.AnalysisRecord{
		SubjectID: id,
		Status:    entity.AnalysisCompleted,
		Result:    &result,
		Degraded:  result.Degraded,
		UpdatedAt: p.now(),
	}
	if err := retry.Do(ctx, p.cfg.Persist, "upsert_analysis", func(ctx context.Context) error {
		return p.store.Upsert(ctx, record)
	}); err != nil {
		p.fail(ctx, logger, id, fmt.Errorf("persist analysis: %w", err))
		return
	}

	p.setJob(id, &job{status: StatusCompleted, result: &result, degraded: result.Degraded})
	label := "completed"
	if result.Degraded {
		label = "degraded"
	}
	p.finish(StatusCompleted, label)
	logger.InfoContext(ctx, "analysis completed", slog.Bool("degraded", result.Degraded))
}

// fail marks id as error and stores a minimal error record so the subject is
// not retried until it is explicitly enqueued again.
func (p *Processor) fail(ctx context.Context, logger *slog.Logger, id int64, cause error) {
	msg := text.Truncate(cause.Error(), maxErrorMessageRunes)
	p.setJob(id, &job{status: StatusError, errMsg: msg})
	p.finish(StatusError, string(StatusError))

	record := &entity.AnalysisRecord{
		SubjectID:    id,
		Status:       entity.AnalysisError,
		ErrorMessage: msg,
		UpdatedAt:    p.now(),
	}
	if err := retry.Do(ctx, p.cfg.Persist, "upsert_analysis", func(ctx context.Context) error {
		return p.store.Upsert(ctx, record)
	}); err != nil {
		logger.ErrorContext(ctx, "failed to persist error record", slog.Any("error", err))
	}
	logger.ErrorContext(ctx, "analysis failed", slog.Any("error", cause))
}

func (p *Processor) finish(status Status, label string) {
	p.mu.Lock()
	p.progress.Processed++
	if status == StatusError {
		p.progress.Errors++
	}
	p.mu.Unlock()
	p.metrics.jobs.WithLabelValues(label).Inc()
}

func chunk(ids []int64, size int) [][]int64 {
	var out [][]int64
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n:n])
		ids = ids[n:]
	}
	return out
}
