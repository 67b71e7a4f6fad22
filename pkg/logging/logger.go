package logging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

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

// ContextKey for correlation IDs
type contextKey string

const correlationIDKey contextKey = "correlation_id"

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger writes JSON logs to stdout.
func NewLogger(level LogLevel) *Logger {
	return New(os.Stdout, level)
}

func New(w io.Writer, level LogLevel) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	return New(io.Discard, LevelError)
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context) context.Context {
	if GetCorrelationID(ctx) == "" {
		return ContextWithCorrelationID(ctx, uuid.New().String())
	}
	return ctx
}

// ContextWithCorrelationID stores id as the context's correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

func withCorrelation(ctx context.Context, args []any) []any {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	return args
}

// Debug logs debug level messages with correlation ID
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Logger.DebugContext(ctx, msg, withCorrelation(ctx, args)...)
}

// Info logs info level messages with correlation ID
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, withCorrelation(ctx, args)...)
}

// Warn logs warn level messages with correlation ID
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Logger.WarnContext(ctx, msg, withCorrelation(ctx, args)...)
}

// Error logs error level messages with correlation ID
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, withCorrelation(ctx, args)...)
}

// LogURLOperation logs short URL operations without the long URL.
func (l *Logger) LogURLOperation(ctx context.Context, operation, code string, success bool) {
	l.Info(ctx, "url operation",
		"operation", operation,
		"code", code,
		"success", success,
	)
}

// LogAuthEvent logs authentication events without sensitive data
func (l *Logger) LogAuthEvent(ctx context.Context, event string, subject string, success bool) {
	l.Info(ctx, "auth event",
		"event", event,
		"subject_hash", hashSensitiveData(subject),
		"success", success,
	)
}

// hashSensitiveData returns a short stable digest of data so that events for
// the same subject can be correlated without logging any of it.
func hashSensitiveData(data string) string {
	if data == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:6])
}
