package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookExecutor posts one embed to a webhook URL.
type WebhookExecutor interface {
	ExecuteWebhook(ctx context.Context, rawURL string, embed Embed) error
}

// WebhookNotifier mirrors connection, edit, and deletion events to the
// configured webhook when the matching trigger is enabled.
type WebhookNotifier struct {
	executor WebhookExecutor
	settings func() settings.Webhook
	logger   *slog.Logger
	timeout  time.Duration
}

// NewWebhookNotifier creates a notifier reading the current webhook settings
// from current on every event.
func NewWebhookNotifier(executor WebhookExecutor, current func() settings.Webhook, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookNotifier{
		executor: executor,
		settings: current,
		logger:   logger,
		timeout:  defaultWebhookTimeout,
	}
}

// Connected announces a validated session.
func (n *WebhookNotifier) Connected(ctx context.Context, self sniper.User) error {
	webhook := n.settings()
	if !webhook.OnConnect || !webhook.Configured() {
		return nil
	}

	return n.execute(ctx, webhook.URL, Embed{
		Title:       "Connection Notification",
		Description: fmt.Sprintf("Sniper has connected as %s.", self.Tag()),
		Footer:      "Connection established at",
	})
}

// MessageUpdated mirrors one edit.
func (n *WebhookNotifier) MessageUpdated(ctx context.Context, author string, oldContent string, newContent string) error {
	webhook := n.settings()
	if !webhook.OnUpdatedMessage || !webhook.Configured() {
		return nil
	}

	return n.execute(ctx, webhook.URL, Embed{
		Title:       "Updated Message",
		Description: fmt.Sprintf("[%s]: %s -> %s", author, oldContent, newContent),
		Footer:      "Update detected at",
	})
}

// MessageDeleted mirrors one deletion.
func (n *WebhookNotifier) MessageDeleted(ctx context.Context, author string, content string) error {
	webhook := n.settings()
	if !webhook.OnDeletedMessage || !webhook.Configured() {
		return nil
	}

	return n.execute(ctx, webhook.URL, Embed{
		Title:       "Deleted Message",
		Description: fmt.Sprintf("[%s]: %s", author, content),
		Footer:      "Delete detected at",
	})
}

func (n *WebhookNotifier) execute(ctx context.Context, rawURL string, embed Embed) error {
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.executor.ExecuteWebhook(callCtx, rawURL, embed); err != nil {
		n.logger.WarnContext(ctx, "webhook notification failed", "title", embed.Title, "error", err)
		return fmt.Errorf("webhook %q: %w", embed.Title, err)
	}

	return nil
}
