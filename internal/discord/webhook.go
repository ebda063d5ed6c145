package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/pkg/sniper"
)

const (
	embedColor   = 65280
	embedIconURL = "https://i.imgur.com/AfFp7pu.png"
)

// Embed is one webhook notification card.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Timestamp   time.Time
}

// ParseWebhookURL extracts the webhook id and token from an execute URL such
// as https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (id string, token string, err error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", "", fmt.Errorf("parse webhook url: %w: unsupported scheme %q", sniper.ErrInvalidOutboundRequest, parsed.Scheme)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for index, segment := range segments {
		if segment == "webhooks" && index+2 < len(segments) {
			id, token = segments[index+1], segments[index+2]
			break
		}
	}
	if id == "" || token == "" {
		return "", "", fmt.Errorf("parse webhook url: %w: missing id or token", sniper.ErrInvalidOutboundRequest)
	}

	return id, token, nil
}

// ExecuteWebhook posts one embed to the webhook at rawURL.
func (c *Client) ExecuteWebhook(ctx context.Context, rawURL string, embed Embed) error {
	id, token, err := ParseWebhookURL(rawURL)
	if err != nil {
		return err
	}

	timestamp := embed.Timestamp
	if timestamp.IsZero() {
		timestamp = c.clock.Now()
	}
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       embed.Title,
				Description: embed.Description,
				Color:       embedColor,
				Footer: &discordgo.MessageEmbedFooter{
					Text:    embed.Footer,
					IconURL: embedIconURL,
				},
				Timestamp: timestamp.UTC().Format(time.RFC3339),
			},
		},
	}

	err = c.withRateLimitRetry(ctx, sniper.OutboundOperationWebhook, func() error {
		_, callErr := c.webhooks.WebhookExecute(id, token, false, params, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return fmt.Errorf("execute webhook %s: %w", id, err)
	}

	return nil
}
