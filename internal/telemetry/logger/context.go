// Package logger provides structured logging for metackpt.
package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey contextKey = "metackpt.logger"
	taskIDKey contextKey = "metackpt.task_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns a discarding logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Discard()
}

// WithTaskID adds a checkpoint task ID to the context.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the checkpoint task ID from context.
func TaskIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(taskIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the task ID from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := TaskIDFromContext(ctx); id != "" {
		l = l.With("task_id", id)
	}
	return l
}
