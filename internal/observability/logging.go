// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// PresenceLogger provides structured logging for realtime presence events.
type PresenceLogger struct {
	hubName string
	logger  *Logger
}

// NewPresenceLogger creates a new PresenceLogger for the given hub.
func NewPresenceLogger(hubName string) *PresenceLogger {
	return &PresenceLogger{
		hubName: hubName,
		logger:  GlobalLogger,
	}
}

// LogConnect logs a realtime connection event.
func (l *PresenceLogger) LogConnect(ctx context.Context, userID uint) {
	l.logger.InfoContext(ctx, "presence connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
	)
}

// LogDisconnect logs a realtime disconnection event.
func (l *PresenceLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	l.logger.InfoContext(ctx, "presence disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// LogError logs a realtime delivery error.
func (l *PresenceLogger) LogError(ctx context.Context, userID uint, err error, eventType string) {
	l.logger.ErrorContext(ctx, "presence error",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}
