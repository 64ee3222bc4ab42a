// Package logging builds the structured logger used across the arbiter.
//
// New returns a *slog.Logger in JSON, text or console format. Its handler
// reads well-known values from the context, so components that log with
// the *Context methods get these fields without threading them through:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	ctx = logging.WithBatchID(ctx, batchID)
//	logger.InfoContext(ctx, "batch ingested")  // includes batch_id
//
// The fields are intent_id, batch_id, handle and namespace, plus trace_id
// and span_id whenever the context carries a valid span.
package logging
