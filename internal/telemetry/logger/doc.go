// Package logger provides structured logging for metackpt.
//
// This package wraps log/slog:
//
//   - logger.go: Logger interface, configuration and level control
//   - context.go: context propagation of loggers and task IDs
//
// There is no process-wide logger. Components receive a Logger at
// construction time; FromContext falls back to a discarding logger.
package logger
