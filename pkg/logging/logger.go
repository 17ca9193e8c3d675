package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog with context-aware methods that carry a per-request
// correlation ID. It is injected into every component; nothing in the
// engine logs through a package-level global.
type Logger struct {
	*slog.Logger
}

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

func NewLogger(level LogLevel) *Logger {
	return newLogger(level, os.Stdout)
}

// NewDiscardLogger returns a logger that drops everything. Used in tests.
func NewDiscardLogger() *Logger {
	return newLogger(LevelError, io.Discard)
}

func newLogger(level LogLevel, w io.Writer) *Logger {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})
	return &Logger{Logger: slog.New(handler)}
}

// WithCorrelationID adds a correlation ID to the context if absent.
func WithCorrelationID(ctx context.Context) context.Context {
	if GetCorrelationID(ctx) == "" {
		return context.WithValue(ctx, correlationIDKey, uuid.New().String())
	}
	return ctx
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	l.Logger.Debug(msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	l.Logger.Info(msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	l.Logger.Warn(msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	l.Logger.Error(msg, args...)
}

// LogLinkOperation logs link lifecycle operations without sensitive data.
func (l *Logger) LogLinkOperation(ctx context.Context, operation, code string, success bool) {
	l.Info(ctx, "link operation",
		"operation", operation,
		"code", code,
		"success", success,
	)
}

// LogURLValidation logs the outcome of a safety check without the URL itself.
func (l *Logger) LogURLValidation(ctx context.Context, safe bool, reason string) {
	l.Debug(ctx, "url validation",
		"safe", safe,
		"reason", reason, // reasons are fixed policy strings, safe to log
	)
}

// LogAuthEvent logs authentication events without sensitive data.
func (l *Logger) LogAuthEvent(ctx context.Context, event, subject string, success bool) {
	l.Info(ctx, "auth event",
		"event", event,
		"subject_hash", hashSensitiveData(subject),
		"success", success,
	)
}

func hashSensitiveData(data string) string {
	if len(data) < 8 {
		return "***"
	}
	return data[:3] + "***" + data[len(data)-3:]
}
