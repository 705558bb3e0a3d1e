package tripdb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with tripdb-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDataset adds the source dataset name to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, dir string, records int, skipped int64, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"dir", dir,
			"records", records,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			"dir", dir,
			"records", records,
			"skipped", skipped,
			"took", took,
		)
	}
}

// LogOpen logs reuse of an existing index generation.
func (l *Logger) LogOpen(ctx context.Context, dir string, count int) {
	l.InfoContext(ctx, "using existing index",
		"dir", dir,
		"count", count,
	)
}

// LogQuery logs a query execution.
func (l *Logger) LogQuery(ctx context.Context, op, filter, strategy string, scanned, matched int64, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"op", op,
			"filter", filter,
			"strategy", strategy,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"op", op,
			"filter", filter,
			"strategy", strategy,
			"scanned", scanned,
			"matched", matched,
			"took", took,
		)
	}
}

// LogReinitialize logs a generation swap.
func (l *Logger) LogReinitialize(ctx context.Context, oldGen, newGen string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reinitialize failed",
			"old", oldGen,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index reinitialized",
			"old", oldGen,
			"new", newGen,
			"records", records,
		)
	}
}
