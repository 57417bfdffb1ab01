// Package resilience groups the fault tolerance building blocks used around the
// text-generation provider and the durable analysis store.
//
// Subpackages:
//   - circuitbreaker: per-dependency breaker with call timeout, last-failure tracking and fallback
//   - cache: bounded TTL cache for provider-derived results, keyed by a stable hash of the request
//   - retry: exponential backoff with jitter for durable-store writes
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("claude-api"))
//	result, err := cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
//	    return provider.Complete(ctx, prompt)
//	})
//
//	err = retry.Do(ctx, retry.DBConfig(), "upsert_analysis", func(ctx context.Context) error {
//	    return store.Upsert(ctx, record)
//	})
package resilience
