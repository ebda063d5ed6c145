package session

import (
	"context"
	"log/slog"

	"ex-sniper/pkg/sniper"
)

// LogNotifier renders notifications as structured log records.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

// Notify implements sniper.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, notification sniper.Notification) {
	attrs := []slog.Attr{slog.String("kind", string(notification.Level))}
	if notification.Source != "" {
		attrs = append(attrs, slog.String("source", notification.Source))
	}
	if notification.Link != "" {
		attrs = append(attrs, slog.String("link", notification.Link))
	}
	if notification.Spy {
		attrs = append(attrs, slog.Bool("spy", true))
	}

	n.logger.LogAttrs(ctx, logLevel(notification.Level), notification.Text, attrs...)
}

func logLevel(level sniper.Level) slog.Level {
	switch level {
	case sniper.LevelError:
		return slog.LevelError
	case sniper.LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
