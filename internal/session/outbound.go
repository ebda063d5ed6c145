package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"ex-sniper/internal/discord"
	"ex-sniper/pkg/sniper"
)

// RESTClient is the token-bound outbound surface of one session.
type RESTClient interface {
	sniper.MessageClient
	sniper.UserResolver
	sniper.IdentityChecker
	sniper.RelationshipManager
	sniper.ProfileEditor
	ExecuteWebhook(ctx context.Context, rawURL string, embed discord.Embed) error
}

type restHolder struct {
	client RESTClient
}

// Outbound forwards calls to the REST client of the current session so that
// long-lived collaborators (bump tasks, commands, webhooks) survive token
// changes. Calls fail with sniper.ErrNotConnected while no client is set.
type Outbound struct {
	current atomic.Pointer[restHolder]
}

// NewOutbound creates an empty proxy.
func NewOutbound() *Outbound {
	return &Outbound{}
}

// Swap installs client, or clears the proxy when client is nil.
func (o *Outbound) Swap(client RESTClient) {
	if client == nil {
		o.current.Store(nil)
		return
	}
	o.current.Store(&restHolder{client: client})
}

func (o *Outbound) client(operation string) (RESTClient, error) {
	holder := o.current.Load()
	if holder == nil {
		return nil, fmt.Errorf("%s: %w", operation, sniper.ErrNotConnected)
	}

	return holder.client, nil
}

// SendMessage implements sniper.MessageSender.
func (o *Outbound) SendMessage(ctx context.Context, channelID string, content string) (*sniper.Message, error) {
	client, err := o.client("send message")
	if err != nil {
		return nil, err
	}

	return client.SendMessage(ctx, channelID, content)
}

// EditMessage implements sniper.MessageClient.
func (o *Outbound) EditMessage(ctx context.Context, channelID string, messageID string, content string) (*sniper.Message, error) {
	client, err := o.client("edit message")
	if err != nil {
		return nil, err
	}

	return client.EditMessage(ctx, channelID, messageID, content)
}

// DeleteMessage implements sniper.MessageClient.
func (o *Outbound) DeleteMessage(ctx context.Context, channelID string, messageID string) error {
	client, err := o.client("delete message")
	if err != nil {
		return err
	}

	return client.DeleteMessage(ctx, channelID, messageID)
}

// ListMessages implements sniper.MessageClient.
func (o *Outbound) ListMessages(ctx context.Context, channelID string, limit int, before string) ([]sniper.Message, error) {
	client, err := o.client("list messages")
	if err != nil {
		return nil, err
	}

	return client.ListMessages(ctx, channelID, limit, before)
}

// User implements sniper.UserResolver.
func (o *Outbound) User(ctx context.Context, userID string) (sniper.User, error) {
	client, err := o.client("get user")
	if err != nil {
		return sniper.User{}, err
	}

	return client.User(ctx, userID)
}

// Me implements sniper.IdentityChecker.
func (o *Outbound) Me(ctx context.Context) (sniper.User, error) {
	client, err := o.client("get current user")
	if err != nil {
		return sniper.User{}, err
	}

	return client.Me(ctx)
}

// Relationships implements sniper.RelationshipManager.
func (o *Outbound) Relationships(ctx context.Context) ([]sniper.Relationship, error) {
	client, err := o.client("list relationships")
	if err != nil {
		return nil, err
	}

	return client.Relationships(ctx)
}

// RemoveRelationship implements sniper.RelationshipManager.
func (o *Outbound) RemoveRelationship(ctx context.Context, userID string) error {
	client, err := o.client("remove relationship")
	if err != nil {
		return err
	}

	return client.RemoveRelationship(ctx, userID)
}

// SetAvatar implements sniper.ProfileEditor.
func (o *Outbound) SetAvatar(ctx context.Context, imageURL string) error {
	client, err := o.client("set avatar")
	if err != nil {
		return err
	}

	return client.SetAvatar(ctx, imageURL)
}

// ExecuteWebhook implements discord.WebhookExecutor.
func (o *Outbound) ExecuteWebhook(ctx context.Context, rawURL string, embed discord.Embed) error {
	client, err := o.client("execute webhook")
	if err != nil {
		return err
	}

	return client.ExecuteWebhook(ctx, rawURL, embed)
}

var (
	_ RESTClient              = (*Outbound)(nil)
	_ RESTClient              = (*discord.Client)(nil)
	_ discord.WebhookExecutor = (*Outbound)(nil)
)
