// Package discord adapts the platform REST API to the outbound contracts
// used by commands, bump tasks, and the connection manager.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/internal/clock"
	"ex-sniper/pkg/sniper"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxListLimit          = 100
)

// Option mutates client configuration.
type Option func(*Client)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithHTTPClient replaces the HTTP client used for REST calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithClock replaces the clock used for rate-limit waits.
func WithClock(c clock.Clock) Option {
	return func(client *Client) {
		if c != nil {
			client.clock = c
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(client *Client) {
		if strings.TrimSpace(userAgent) != "" {
			client.userAgent = userAgent
		}
	}
}

// Client issues REST calls with the account token.
//
// Rate-limited calls are retried once after the server-supplied delay; a
// second rate limit is returned as a sniper.OutboundError. Client is safe
// for concurrent use.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	clock      clock.Clock
	userAgent  string

	session  *discordgo.Session
	webhooks *discordgo.Session
}

// New creates a REST client authenticated with token.
func New(token string, options ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("new discord client: %w: empty token", sniper.ErrInvalidOutboundRequest)
	}

	client := &Client{
		logger:     slog.Default(),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		clock:      clock.Real(),
	}
	for _, option := range options {
		option(client)
	}

	session, err := newSession(token, client.httpClient, client.userAgent)
	if err != nil {
		return nil, fmt.Errorf("new discord client: %w", err)
	}
	// Webhook executions carry their own credential in the URL and must not
	// leak the account token.
	webhooks, err := newSession("", client.httpClient, client.userAgent)
	if err != nil {
		return nil, fmt.Errorf("new discord webhook client: %w", err)
	}
	client.session = session
	client.webhooks = webhooks

	return client, nil
}

func newSession(token string, httpClient *http.Client, userAgent string) (*discordgo.Session, error) {
	session, err := discordgo.New(token)
	if err != nil {
		return nil, err
	}
	session.Client = httpClient
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0
	if userAgent != "" {
		session.UserAgent = userAgent
	}

	return session, nil
}

// SendMessage posts content to channelID.
func (c *Client) SendMessage(ctx context.Context, channelID string, content string) (*sniper.Message, error) {
	if err := sniper.ValidateChannelID(channelID); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	var sent *discordgo.Message
	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationSendMessage, func() error {
		var callErr error
		sent, callErr = c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	message := ToMessage(sent)

	return &message, nil
}

// EditMessage replaces the content of messageID.
func (c *Client) EditMessage(ctx context.Context, channelID string, messageID string, content string) (*sniper.Message, error) {
	if err := sniper.ValidateMessageRef(channelID, messageID); err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}

	var edited *discordgo.Message
	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationEditMessage, func() error {
		var callErr error
		edited, callErr = c.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	message := ToMessage(edited)

	return &message, nil
}

// DeleteMessage removes messageID.
func (c *Client) DeleteMessage(ctx context.Context, channelID string, messageID string) error {
	if err := sniper.ValidateMessageRef(channelID, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationDeleteMessage, func() error {
		return c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}

	return nil
}

// ListMessages returns up to limit messages older than before, newest first.
// An empty before lists from the newest message.
func (c *Client) ListMessages(ctx context.Context, channelID string, limit int, before string) ([]sniper.Message, error) {
	if err := sniper.ValidateChannelID(channelID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var page []*discordgo.Message
	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationListMessages, func() error {
		var callErr error
		page, callErr = c.session.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("list messages in %s: %w", channelID, err)
	}

	messages := make([]sniper.Message, 0, len(page))
	for _, message := range page {
		if message == nil {
			continue
		}
		projected := ToMessage(message)
		if projected.ChannelID == "" {
			projected.ChannelID = channelID
		}
		messages = append(messages, projected)
	}

	return messages, nil
}

// User looks up one account by id.
func (c *Client) User(ctx context.Context, userID string) (sniper.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return sniper.User{}, fmt.Errorf("get user: %w: missing user id", sniper.ErrInvalidOutboundRequest)
	}

	return c.user(ctx, userID)
}

// Me returns the identity that owns the token.
func (c *Client) Me(ctx context.Context) (sniper.User, error) {
	return c.user(ctx, "@me")
}

func (c *Client) user(ctx context.Context, userID string) (sniper.User, error) {
	var user *discordgo.User
	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationGetUser, func() error {
		var callErr error
		user, callErr = c.session.User(userID, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return sniper.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	if user == nil || user.ID == "" {
		return sniper.User{}, fmt.Errorf("get user %s: %w", userID, sniper.ErrUnknownUser)
	}

	return ToUser(user), nil
}

func (c *Client) withRateLimitRetry(ctx context.Context, operation sniper.OutboundOperation, call func() error) error {
	err := mapOutboundError(operation, call())
	retryAfter, limited := sniper.AsOutboundRateLimit(err)
	if !limited {
		return err
	}

	c.logger.WarnContext(ctx, "discord rate limited, retrying once",
		"operation", operation,
		"retry_after", retryAfter,
	)
	if retryAfter > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for rate limit: %w", ctx.Err())
		case <-c.clock.After(retryAfter):
		}
	}

	return mapOutboundError(operation, call())
}
