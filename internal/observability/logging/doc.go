// Package logging configures log/slog and carries request-scoped loggers
// through context.
//
//	logger := logging.NewLogger("worker")
//	slog.SetDefault(logger)
//
//	ctx = logging.WithLogger(ctx, logging.WithRequestID(ctx, logger))
//	logging.FromContext(ctx).Info("analysis started", slog.Int64("document_id", id))
package logging
