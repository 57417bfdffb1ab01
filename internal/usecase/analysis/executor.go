package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"grant-insight/internal/domain/entity"
	"grant-insight/internal/observability/logging"
	"grant-insight/internal/resilience/cache"
	"grant-insight/internal/resilience/circuitbreaker"
)

// Operation describes one kind of provider-derived result.
type Operation[Req, Res any] struct {
	Kind cache.Kind
	TTL  time.Duration

	// KeyFields returns only the request attributes that change the result.
	KeyFields func(req Req) any

	Prompt func(req Req) Prompt

	// Parse validates the raw completion. Failures should be *ParseError.
	Parse func(raw string, req Req) (Res, error)

	// Fallback computes a result from local data. It has no access to the provider.
	Fallback func(ctx context.Context, req Req) (Res, error)
}

// Result is a successful outcome of Run.
type Result[Res any] struct {
	Value    Res
	Degraded bool
	Source   entity.ResultSource
}

// Executor composes the cache, the provider breaker and the fallback path.
// One Executor is shared by every operation calling the same provider.
type Executor struct {
	provider Provider
	breaker  *circuitbreaker.CircuitBreaker
	cache    *cache.Store
	metrics  *executorMetrics
}

// NewExecutor wires an executor. The breaker should not carry its own fallback;
// Run falls back per operation.
func NewExecutor(provider Provider, breaker *circuitbreaker.CircuitBreaker, store *cache.Store) *Executor {
	return &Executor{
		provider: provider,
		breaker:  breaker,
		cache:    store,
		metrics:  getExecutorMetrics(),
	}
}

// Breaker exposes the provider breaker for health reporting.
func (e *Executor) Breaker() *circuitbreaker.CircuitBreaker { return e.breaker }

// Cache exposes the result cache.
func (e *Executor) Cache() *cache.Store { return e.cache }

// ProviderName returns the configured provider's name.
func (e *Executor) ProviderName() string { return e.provider.Name() }

// Run returns op's result for req.
//
// A cache hit answers without touching the breaker. On a miss the provider is
// called through the breaker and the completion parsed; a parse failure counts
// as a call failure. Successful results are cached for op.TTL. Any failure yields
// op.Fallback's result flagged as degraded, which is never cached. Only a failing
// fallback produces an error, always a *CallError.
func Run[Req, Res any](ctx context.Context, e *Executor, op Operation[Req, Res], req Req) (Result[Res], error) {
	logger := logging.FromContext(ctx).With(slog.String("operation", string(op.Kind)))

	key, keyErr := cache.Key(op.Kind, op.KeyFields(req))
	if keyErr != nil {
		logger.WarnContext(ctx, "cache key unavailable, bypassing cache", slog.Any("error", keyErr))
	} else if v, ok := e.cache.Get(key); ok {
		if cached, ok := v.(Res); ok {
			return Result[Res]{Value: cached, Source: entity.SourceCache}, nil
		}
		e.cache.Delete(key)
	}

	out, err := e.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		raw, err := e.provider.Complete(ctx, op.Prompt(req))
		if err != nil {
			return nil, err
		}
		return op.Parse(raw, req)
	})
	if err == nil {
		if res, ok := out.(Res); ok {
			if keyErr == nil {
				e.cache.Set(key, res, op.TTL)
			}
			return Result[Res]{Value: res, Source: entity.SourceProvider}, nil
		}
		// A breaker fallback answered with a value this operation cannot use.
		err = &ParseError{Kind: string(op.Kind), Reason: fmt.Sprintf("unexpected result type %T", out)}
	}

	reason := failureReason(err)
	if errors.Is(err, ErrPermanent) {
		logger.ErrorContext(ctx, "provider rejected request",
			slog.String("provider", e.provider.Name()),
			slog.Bool("retryable", false),
			slog.Any("error", err))
	}

	if op.Fallback == nil {
		return Result[Res]{}, newCallError(op.Kind, err, errNoFallback)
	}
	fb, fbErr := op.Fallback(ctx, req)
	if fbErr != nil {
		logger.ErrorContext(ctx, "fallback failed",
			slog.String("reason", reason),
			slog.Any("cause", err),
			slog.Any("error", fbErr))
		return Result[Res]{}, newCallError(op.Kind, err, fbErr)
	}

	e.metrics.degraded.WithLabelValues(string(op.Kind), reason).Inc()
	logger.WarnContext(ctx, "degraded result served",
		slog.Bool("degraded", true),
		slog.String("reason", reason),
		slog.String("circuit_state", e.breaker.State().String()),
		slog.Any("cause", err))

	return Result[Res]{Value: fb, Degraded: true, Source: entity.SourceFallback}, nil
}

func newCallError(kind cache.Kind, cause, fallbackErr error) *CallError {
	ek := ProviderUnavailable
	// An open circuit unwraps to the last failure, which may itself be a parse error.
	if errors.Is(cause, ErrParse) && !errors.Is(cause, circuitbreaker.ErrCircuitOpen) {
		ek = InvalidResponse
	}
	return &CallError{
		Kind:        ek,
		Operation:   string(kind),
		Cause:       cause,
		FallbackErr: fallbackErr,
	}
}

// failureReason maps a failure to a low-cardinality label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, circuitbreaker.ErrCallTimeout):
		return "timeout"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}
