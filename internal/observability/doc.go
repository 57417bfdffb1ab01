// Package observability groups logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog setup and request-scoped loggers
//   - metrics: HTTP and database pool collectors
//   - tracing: OpenTelemetry provider setup and HTTP middleware
//
// Component-owned metrics (breaker, cache, queue, provider) live next to the
// component that records them.
package observability
