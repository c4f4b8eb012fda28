// Package log provides a structured logging interface for penreg.
//
// The Logger interface is slog-compatible: key/value field pairs, contextual
// loggers via With, and level checks via Enabled. Two backends are provided,
// a zerolog backend (NewZerologLogger, the default for the CLI) and an adapter
// over log/slog (NewSlogLogger) used together with SetupLogger for JSON output
// in Cloud Logging format.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ComponentKey, "tune",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("grid search started",
//	    log.GridSizeKey, 121,
//	    log.FoldsKey, 10,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key/value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key/value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key/value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// attached as the "error" attribute.
	//
	// Example:
	//   logger.Error("fold fit failed",
	//       err,
	//       log.PenaltyKey, 3.0,
	//       log.FoldKey, 2,
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}
