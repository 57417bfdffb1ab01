package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"grant-insight/internal/handler/http/requestid"
	"grant-insight/internal/handler/http/responsewriter"
)

// Middleware starts a server span per request, continuing any incoming W3C
// trace context, and echoes the trace ID in the X-Trace-Id header.
// Spans of 5xx responses are marked as errors.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := GetTracer().Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		w.Header().Set("X-Trace-Id", span.SpanContext().TraceID().String())

		rec := responsewriter.Wrap(w)
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
			attribute.Int("http.status_code", rec.StatusCode()),
		}
		if r.Pattern != "" {
			span.SetName(r.Pattern)
			attrs = append(attrs, attribute.String("http.route", r.Pattern))
		}
		if id := requestid.FromContext(ctx); id != "" {
			attrs = append(attrs, attribute.String("request.id", id))
		}
		span.SetAttributes(attrs...)

		if rec.StatusCode() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.StatusCode()))
		}
	})
}
