package logging

import (
	"context"
	"log/slog"
)

// SlogLogger adapts *slog.Logger to the Logger interface. The zero value is
// not usable; construct via NewSlogLogger.
type SlogLogger struct {
	base *slog.Logger
}

func NewSlogLogger(base *slog.Logger) *SlogLogger {
	return &SlogLogger{base: base}
}

func (l *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.base.DebugContext(ctx, msg, args...)
}

func (l *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	l.base.InfoContext(ctx, msg, args...)
}

func (l *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.base.WarnContext(ctx, msg, args...)
}

func (l *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	l.base.ErrorContext(ctx, msg, args...)
}

// With returns a child logger whose records always carry the given
// key-value pairs.
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{base: l.base.With(args...)}
}
