// Package tracing installs the OpenTelemetry tracer provider and traces
// inbound HTTP requests.
//
//	shutdown := tracing.Setup("grant-insight-api")
//	defer shutdown(context.Background())
//
//	handler := tracing.Middleware(mux)
package tracing
