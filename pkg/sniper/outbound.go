package sniper

import (
	"context"
	"fmt"
	"strings"
)

// MessageSender publishes one text message to a channel.
//
// Scheduled bump tasks and command replies depend only on this method.
type MessageSender interface {
	// SendMessage posts content to channelID and returns the created message.
	SendMessage(ctx context.Context, channelID string, content string) (*Message, error)
}

// MessageClient is the outbound REST surface consumed by the command layer.
//
// Implementations must be safe for concurrent use; calls are issued from
// command and bump goroutines, never from the gateway receive loop.
type MessageClient interface {
	MessageSender
	// EditMessage replaces the content of an existing message.
	EditMessage(ctx context.Context, channelID string, messageID string, content string) (*Message, error)
	// DeleteMessage removes a message, retrying once on rate limit.
	DeleteMessage(ctx context.Context, channelID string, messageID string) error
	// ListMessages returns up to limit messages older than before (newest first).
	ListMessages(ctx context.Context, channelID string, limit int, before string) ([]Message, error)
}

// UserResolver resolves account identities.
type UserResolver interface {
	// User looks up one account by id.
	User(ctx context.Context, userID string) (User, error)
}

// IdentityChecker validates the configured credential against the remote service.
type IdentityChecker interface {
	// Me returns the identity that owns the credential.
	Me(ctx context.Context) (User, error)
}

// ValidateChannelID rejects empty channel identifiers.
func ValidateChannelID(channelID string) error {
	if strings.TrimSpace(channelID) == "" {
		return fmt.Errorf("%w: missing channel id", ErrInvalidOutboundRequest)
	}

	return nil
}

// ValidateMessageRef rejects empty channel or message identifiers.
func ValidateMessageRef(channelID string, messageID string) error {
	if err := ValidateChannelID(channelID); err != nil {
		return err
	}
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidOutboundRequest)
	}

	return nil
}
