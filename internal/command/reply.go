package command

import (
	"context"
	"fmt"
	"strings"
)

const (
	titleCommands = "Commands"
	titleInvalid  = "Invalid Command!"
)

// FormatReply renders a titled quote block:
//
//	> ## Title ##
//	> body line
//
// Body lines that already start with a quote marker are kept as they are.
func FormatReply(title string, body string) string {
	var builder strings.Builder
	builder.WriteString("> ## ")
	builder.WriteString(title)
	builder.WriteString(" ##")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		builder.WriteString("\n")
		if !strings.HasPrefix(line, ">") {
			builder.WriteString("> ")
		}
		builder.WriteString(line)
	}

	return builder.String()
}

// Reply deletes the invoking message and posts a titled reply in its channel.
func (c *Call) Reply(ctx context.Context, title string, body string) error {
	c.deleteOrigin(ctx)
	if _, err := c.client.SendMessage(ctx, c.Origin.ChannelID, FormatReply(title, body)); err != nil {
		return fmt.Errorf("send %s reply: %w", c.Name, err)
	}

	return nil
}

// EditReply rewrites the invoking message in place with a titled reply.
func (c *Call) EditReply(ctx context.Context, body string) error {
	if _, err := c.client.EditMessage(ctx, c.Origin.ChannelID, c.Origin.ID, FormatReply(titleCommands, body)); err != nil {
		return fmt.Errorf("edit %s reply: %w", c.Name, err)
	}

	return nil
}

// Send deletes the invoking message and posts content unformatted.
func (c *Call) Send(ctx context.Context, content string) error {
	c.deleteOrigin(ctx)
	if _, err := c.client.SendMessage(ctx, c.Origin.ChannelID, content); err != nil {
		return fmt.Errorf("send %s output: %w", c.Name, err)
	}

	return nil
}

// deleteOrigin removes the invoking message at most once. Failures are logged
// and never abort the reply.
func (c *Call) deleteOrigin(ctx context.Context) {
	if c.originDeleted {
		return
	}
	c.originDeleted = true
	if err := c.client.DeleteMessage(ctx, c.Origin.ChannelID, c.Origin.ID); err != nil {
		c.logger.DebugContext(ctx, "delete invoking message failed",
			"command", c.Name,
			"message_id", c.Origin.ID,
			"error", err,
		)
	}
}

func errorReplyBody(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "Command failed."
	}
	switch message[len(message)-1] {
	case '.', '?', '!':
		return message
	default:
		return message + "."
	}
}
