package types

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID  contextKey = "trace_id"
	keyUserID   contextKey = "user_id"
	keyThreadID contextKey = "thread_id"
	keyRunID    contextKey = "run_id"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithUserID adds user ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID extracts user ID from context.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)
	return v, ok && v != ""
}

// WithThreadID adds thread ID to context.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, keyThreadID, threadID)
}

// ThreadID extracts thread ID from context.
func ThreadID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyThreadID).(string)
	return v, ok && v != ""
}

// WithRunID adds run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// LogFields returns the identity values carried by ctx as zap fields.
func LogFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if v, ok := TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", v))
	}
	if v, ok := RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", v))
	}
	if v, ok := UserID(ctx); ok {
		fields = append(fields, zap.String("user_id", v))
	}
	if v, ok := ThreadID(ctx); ok {
		fields = append(fields, zap.String("thread_id", v))
	}
	return fields
}
