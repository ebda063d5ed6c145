package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ex-sniper/internal/discord"
	"ex-sniper/internal/settings"
)

// ErrUnknownTrigger reports a webhook trigger name that does not exist.
var ErrUnknownTrigger = errors.New("session: unknown webhook trigger")

// ErrUnknownPresence reports a presence name the gateway does not accept.
var ErrUnknownPresence = errors.New("session: unknown presence")

var presences = map[string]struct{}{
	"online":    {},
	"idle":      {},
	"dnd":       {},
	"invisible": {},
}

// Lifecycle is the supervisor surface the façade drives.
type Lifecycle interface {
	Start(ctx context.Context, token string) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status() string
	UpdateStatus(status string, afk bool) error
}

// Client is the façade the operator console talks to. It exposes session
// control and settings edits and nothing else.
type Client struct {
	lifecycle Lifecycle
	session   *Context
}

// NewClient creates a façade over lifecycle and session.
func NewClient(lifecycle Lifecycle, session *Context) (*Client, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("new session client: nil lifecycle")
	}
	if session == nil || session.Settings == nil {
		return nil, fmt.Errorf("new session client: missing settings")
	}

	return &Client{lifecycle: lifecycle, session: session}, nil
}

// Start begins a session; token may be empty to reuse the configured one.
func (c *Client) Start(ctx context.Context, token string) error {
	return c.lifecycle.Start(ctx, strings.TrimSpace(token))
}

// Stop ends the running session.
func (c *Client) Stop(ctx context.Context) error {
	return c.lifecycle.Stop(ctx)
}

// Restart reconnects with the current token.
func (c *Client) Restart(ctx context.Context) error {
	return c.lifecycle.Restart(ctx)
}

// Status renders the session state.
func (c *Client) Status() string {
	return c.lifecycle.Status()
}

// SetPresence changes the account presence: online, idle, dnd or invisible.
func (c *Client) SetPresence(presence string, afk bool) error {
	presence = strings.ToLower(strings.TrimSpace(presence))
	if _, ok := presences[presence]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPresence, presence)
	}
	if err := c.lifecycle.UpdateStatus(presence, afk); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}

	return nil
}

// Settings returns the current display settings.
func (c *Client) Settings() settings.Settings {
	return c.session.Settings.Settings()
}

// Webhook returns the current webhook settings.
func (c *Client) Webhook() settings.Webhook {
	return c.session.Settings.Webhook()
}

// SetPrefix changes the command prefix.
func (c *Client) SetPrefix(prefix string) error {
	_, err := c.session.Settings.UpdateSettings(func(current *settings.Settings) error {
		current.Prefix = strings.TrimSpace(prefix)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set prefix: %w", err)
	}

	return nil
}

// SetShow toggles one display flag.
func (c *Client) SetShow(flag string, enabled bool) error {
	_, err := c.session.Settings.UpdateSettings(func(current *settings.Settings) error {
		return current.SetFlag(flag, enabled)
	})
	if err != nil {
		return fmt.Errorf("set show %s: %w", flag, err)
	}

	return nil
}

// SetWebhookURL configures the webhook target. "off" or an empty URL
// disables it. Enabling a webhook with no triggers turns all triggers on.
func (c *Client) SetWebhookURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	_, err := c.session.Settings.UpdateWebhook(func(current *settings.Webhook) error {
		if rawURL == "" || strings.EqualFold(rawURL, "off") {
			current.URL = settings.DisabledWebhookURL
			return nil
		}
		if _, _, err := discord.ParseWebhookURL(rawURL); err != nil {
			return err
		}
		current.URL = rawURL
		if !current.OnConnect && !current.OnUpdatedMessage && !current.OnDeletedMessage {
			current.OnConnect, current.OnUpdatedMessage, current.OnDeletedMessage = true, true, true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	return nil
}

// SetWebhookTrigger toggles one webhook trigger: connect, updated or deleted.
func (c *Client) SetWebhookTrigger(trigger string, enabled bool) error {
	_, err := c.session.Settings.UpdateWebhook(func(current *settings.Webhook) error {
		switch strings.ToLower(strings.TrimSpace(trigger)) {
		case "connect":
			current.OnConnect = enabled
		case "updated":
			current.OnUpdatedMessage = enabled
		case "deleted":
			current.OnDeletedMessage = enabled
		default:
			return fmt.Errorf("%w: %q", ErrUnknownTrigger, trigger)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set webhook trigger: %w", err)
	}

	return nil
}

var _ Lifecycle = (*Supervisor)(nil)
