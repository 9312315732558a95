package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[slog.Logger]

type ctxKey struct{}

// ParseLevel maps a config level name to a slog level. Unknown names log at info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Initialize sets up the global logger writing to stdout.
func Initialize(level, format string) {
	InitializeWriter(os.Stdout, level, format)
}

// InitializeWriter sets up the global logger writing to w. format is "json"
// or "text".
func InitializeWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler).With("app", "battery-rental")
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// Get returns the global logger, creating an info-level text logger on
// first use.
func Get() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	Initialize("info", "text")
	return defaultLogger.Load()
}

// NewContext returns a copy of ctx whose log lines carry args, e.g. the
// request ID and caller of an API request.
func NewContext(ctx context.Context, args ...any) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).With(args...))
}

// FromContext returns the request logger stored in ctx, or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Get()
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// InfoContext logs through the request logger of ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).InfoContext(ctx, msg, args...)
}

// WarnContext logs through the request logger of ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).WarnContext(ctx, msg, args...)
}

// ErrorContext logs through the request logger of ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).ErrorContext(ctx, msg, args...)
}

// WithComponent returns a logger tagged with a component name, such as
// "scheduler" or "http".
func WithComponent(name string) *slog.Logger {
	return Get().With("component", name)
}

// EnterMethod logs method entry (process tracking)
func EnterMethod(methodName string, args ...any) {
	Get().Debug("→ Method entered", withPrefix([]any{"method", methodName, "event", "enter"}, args)...)
}

// ExitMethod logs method exit (process tracking)
func ExitMethod(methodName string, args ...any) {
	Get().Debug("← Method exited", withPrefix([]any{"method", methodName, "event", "exit"}, args)...)
}

// ExitMethodWithError logs method exit with error (process tracking)
func ExitMethodWithError(methodName string, err error, args ...any) {
	Get().Error("← Method exited with error", withPrefix([]any{"method", methodName, "event", "exit", "error", err}, args)...)
}

// DatabaseCall logs a database statement before it runs.
func DatabaseCall(operation, query string, args ...any) {
	Get().Debug("→ Database call", withPrefix([]any{"operation", operation, "query", query}, args)...)
}

// DatabaseResult logs the outcome of a database statement.
func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	all := withPrefix([]any{"operation", operation, "rows_affected", rowsAffected}, args)
	if err != nil {
		Get().Error("← Database call failed", append(all, "error", err)...)
		return
	}
	Get().Debug("← Database call succeeded", all...)
}

// ExternalServiceCall logs a call to a third-party service such as the mail API.
func ExternalServiceCall(service, operation string, args ...any) {
	Get().Debug("→ External service call", withPrefix([]any{"service", service, "operation", operation}, args)...)
}

// ExternalServiceResult logs the outcome of a third-party call.
func ExternalServiceResult(service, operation string, err error, args ...any) {
	all := withPrefix([]any{"service", service, "operation", operation}, args)
	if err != nil {
		Get().Error("← External service call failed", append(all, "error", err)...)
		return
	}
	Get().Debug("← External service call succeeded", all...)
}

func withPrefix(prefix, args []any) []any {
	out := make([]any, 0, len(prefix)+len(args))
	return append(append(out, prefix...), args...)
}
