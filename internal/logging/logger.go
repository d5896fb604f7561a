// Package logging provides the structured logger shared by both
// daemons, following the teacher repo's internal/utils.Logger shape:
// a slog.JSONHandler wrapped so call sites don't thread *slog.Logger
// everywhere, enriched per-call with actor/request attributes pulled
// out of context.Context.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roomyhq/spacepeer/internal/contextkey"
)

// Logger wraps slog with context-aware attribute injection.
type Logger struct {
	slog *slog.Logger
}

// New creates a structured logger at the given level ("debug", "info",
// "warn", "error"; defaults to info on parse failure).
func New(logLevel string) *Logger {
	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		*level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})

	return &Logger{slog: slog.New(handler)}
}

// WithContext returns a child logger carrying request/actor attributes
// found in ctx.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	handler := l.slog.Handler()

	if reqID, ok := ctx.Value(contextkey.ContextKeyRequestID).(string); ok && reqID != "" {
		handler = handler.WithGroup("request").WithAttrs([]slog.Attr{
			slog.String("id", reqID),
		})
	}

	if userDID, ok := ctx.Value(contextkey.ContextKeyUserID).(string); ok && userDID != "" {
		handler = handler.WithGroup("auth").WithAttrs([]slog.Attr{
			slog.String("user_did", userDID),
		})
	}

	if actor, ok := ctx.Value(contextkey.ContextKeyActorID).(string); ok && actor != "" {
		handler = handler.WithGroup("actor").WithAttrs([]slog.Attr{
			slog.String("id", actor),
		})
	}

	return slog.New(handler)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Info(fmt.Sprintf(msg, args...))
}

func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Debug(fmt.Sprintf(msg, args...))
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Warn(fmt.Sprintf(msg, args...))
}

// Fatal logs at error level and exits the process. Reserved for
// unrecoverable startup failures, mirroring the teacher's usage.
func (l *Logger) Fatal(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
	os.Exit(1)
}
