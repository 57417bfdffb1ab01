// Package analysis produces provider-derived results (document analyses, grant
// recommendations, answers) through a cache, a circuit breaker and a local
// fallback, so callers always get either a genuine or a clearly degraded result.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/observability/logging"
	"grant-insight/internal/observability/tracing"
	"grant-insight/internal/repository"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/utils/text"
)

const (
	defaultRecommendLimit = 5
	maxRecommendLimit     = 20
	defaultCandidateLimit = 50
)

// ServiceConfig tunes the Service. Zero values select defaults.
type ServiceConfig struct {
	TTLs           cache.TTLs
	CandidateLimit int
	Now            func() time.Time
}

// Service is the entry point for the three analysis operations.
type Service struct {
	exec   *Executor
	grants repository.GrantRepository
	now    func() time.Time

	candidateLimit int
	document       Operation[*entity.Document, entity.AnalysisResult]
	recommend      Operation[RecommendRequest, entity.RecommendationSet]
	ask            Operation[AskRequest, entity.Answer]
}

func NewService(exec *Executor, grants repository.GrantRepository, cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	if cfg.TTLs == (cache.TTLs{}) {
		cfg.TTLs = cache.DefaultTTLs()
	}
	return &Service{
		exec:           exec,
		grants:         grants,
		now:            cfg.Now,
		candidateLimit: cfg.CandidateLimit,
		document:       DocumentOperation(cfg.TTLs.Document, cfg.Now),
		recommend:      RecommendOperation(cfg.TTLs.Recommendation, cfg.Now),
		ask:            AskOperation(cfg.TTLs.Answer, cfg.Now),
	}
}

// Executor returns the shared executor.
func (s *Service) Executor() *Executor { return s.exec }

// AnalyzeDocument summarizes and scores doc.
func (s *Service) AnalyzeDocument(ctx context.Context, doc *entity.Document) (entity.AnalysisResult, error) {
	res, err := observe(ctx, s.exec, "analyze_document", func(ctx context.Context) (Result[entity.AnalysisResult], error) {
		if doc == nil {
			return Result[entity.AnalysisResult]{}, fmt.Errorf("%w: nil document", ErrInvalidRequest)
		}
		if err := doc.Validate(); err != nil {
			return Result[entity.AnalysisResult]{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return Run(ctx, s.exec, s.document, doc)
	})
	if err != nil {
		return entity.AnalysisResult{}, err
	}
	v := res.Value
	v.Degraded, v.Source = res.Degraded, res.Source
	return v, nil
}

// Recommend ranks the currently open grants for org.
func (s *Service) Recommend(ctx context.Context, org entity.Organization, limit int) (entity.RecommendationSet, error) {
	res, err := observe(ctx, s.exec, "recommend", func(ctx context.Context) (Result[entity.RecommendationSet], error) {
		if err := org.Validate(); err != nil {
			return Result[entity.RecommendationSet]{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		switch {
		case limit <= 0:
			limit = defaultRecommendLimit
		case limit > maxRecommendLimit:
			limit = maxRecommendLimit
		}
		grants, err := s.grants.ListOpen(ctx, s.now(), s.candidateLimit)
		if err != nil {
			return Result[entity.RecommendationSet]{}, fmt.Errorf("list open grants: %w", err)
		}
		return Run(ctx, s.exec, s.recommend, RecommendRequest{Organization: org, Candidates: grants, Limit: limit})
	})
	if err != nil {
		return entity.RecommendationSet{}, err
	}
	v := res.Value
	v.Degraded, v.Source = res.Degraded, res.Source
	return v, nil
}

// Ask answers a question about the currently open grants.
func (s *Service) Ask(ctx context.Context, question string) (entity.Answer, error) {
	res, err := observe(ctx, s.exec, "ask", func(ctx context.Context) (Result[entity.Answer], error) {
		question = strings.TrimSpace(question)
		if question == "" {
			return Result[entity.Answer]{}, fmt.Errorf("%w: question is empty", ErrInvalidRequest)
		}
		if text.CountRunes(question) > maxQuestionRunes {
			return Result[entity.Answer]{}, fmt.Errorf("%w: question exceeds %d characters", ErrInvalidRequest, maxQuestionRunes)
		}
		grants, err := s.grants.ListOpen(ctx, s.now(), s.candidateLimit)
		if err != nil {
			return Result[entity.Answer]{}, fmt.Errorf("list open grants: %w", err)
		}
		return Run(ctx, s.exec, s.ask, AskRequest{Question: question, Candidates: grants})
	})
	if err != nil {
		return entity.Answer{}, err
	}
	v := res.Value
	v.Degraded, v.Source = res.Degraded, res.Source
	return v, nil
}

// observe wraps one operation with a span, a request-scoped logger and duration metrics.
func observe[T any](ctx context.Context, exec *Executor, name string, fn func(context.Context) (Result[T], error)) (Result[T], error) {
	ctx, span := tracing.GetTracer().Start(ctx, "analysis."+name)
	defer span.End()

	ctx = logging.EnsureRequestID(ctx)
	logger := logging.WithRequestID(ctx, logging.FromContext(ctx)).With(slog.String("operation", name))
	ctx = logging.WithLogger(ctx, logger)

	start := time.Now()
	res, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "analysis operation failed",
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return res, fmt.Errorf("%s: %w", name, err)
	}

	span.SetAttributes(
		attribute.String("analysis.source", string(res.Source)),
		attribute.Bool("analysis.degraded", res.Degraded),
	)
	exec.metrics.duration.WithLabelValues(name, string(res.Source)).Observe(duration.Seconds())
	logger.InfoContext(ctx, "analysis operation completed",
		slog.String("source", string(res.Source)),
		slog.Bool("degraded", res.Degraded),
		slog.Duration("duration", duration))
	return res, nil
}
