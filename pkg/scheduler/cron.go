package scheduler

import (
	"context"
	"log/slog"
)

// cronLogger bridges cron.Logger to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Log(context.Background(), slog.LevelError, "cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
