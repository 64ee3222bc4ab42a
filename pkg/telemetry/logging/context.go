package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// IntentIDKey is the context key for the intent being processed.
	IntentIDKey contextKey = "intent_id"

	// BatchIDKey is the context key for ingest batch ids.
	BatchIDKey contextKey = "batch_id"

	// HandleKey is the context key for foreign-call handles.
	HandleKey contextKey = "handle"

	// NamespaceKey is the context key for snapshot store namespaces.
	NamespaceKey contextKey = "namespace"
)

// WithIntentID adds an intent id to the context.
func WithIntentID(ctx context.Context, intentID string) context.Context {
	return context.WithValue(ctx, IntentIDKey, intentID)
}

// GetIntentID retrieves the intent id from the context.
func GetIntentID(ctx context.Context) string {
	return getString(ctx, IntentIDKey)
}

// WithBatchID adds a batch id to the context.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// GetBatchID retrieves the batch id from the context.
func GetBatchID(ctx context.Context) string {
	return getString(ctx, BatchIDKey)
}

// WithHandle adds a foreign-call handle to the context.
func WithHandle(ctx context.Context, handle string) context.Context {
	return context.WithValue(ctx, HandleKey, handle)
}

// GetHandle retrieves the handle from the context.
func GetHandle(ctx context.Context) string {
	return getString(ctx, HandleKey)
}

// WithNamespace adds a store namespace to the context.
func WithNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, NamespaceKey, namespace)
}

// GetNamespace retrieves the store namespace from the context.
func GetNamespace(ctx context.Context) string {
	return getString(ctx, NamespaceKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var fields []slog.Attr
	for _, key := range []contextKey{IntentIDKey, BatchIDKey, HandleKey, NamespaceKey} {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, slog.String(string(key), v))
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return fields
}
