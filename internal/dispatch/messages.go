package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/internal/discord"
	"ex-sniper/pkg/sniper"
)

const (
	oldContentUnavailable = "Old message content not available"
	commandSource         = "Command"
)

func decodeMessage(raw json.RawMessage) (sniper.Message, error) {
	var payload discordgo.Message
	if err := decodePayload(raw, &payload); err != nil {
		return sniper.Message{}, err
	}
	message := discord.ToMessage(&payload)
	if err := message.Validate(); err != nil {
		return sniper.Message{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	return message, nil
}

func (d *Dispatcher) handleMessageCreate(ctx context.Context, raw json.RawMessage) error {
	message, err := decodeMessage(raw)
	if err != nil {
		return err
	}
	current := d.deps.Settings()

	if message.FromBot() && !current.ShowBotMessages {
		return nil
	}

	selfID := d.deps.SelfID()
	if selfID != "" && message.AuthorID() == selfID && strings.HasPrefix(message.Content, current.Prefix) {
		line := strings.TrimSpace(strings.TrimPrefix(message.Content, current.Prefix))
		if d.deps.Commands != nil {
			d.deps.Commands.Submit(ctx, line, message)
		}
		d.notify(ctx, sniper.Notification{
			Level:  sniper.LevelNotification,
			Source: commandSource,
			Text:   message.Content + message.AttachmentSuffix(),
			Link:   message.Link(),
		})
	} else {
		level, show := sniper.LevelServer, current.ShowServerMessages
		if message.IsDirect() {
			level, show = sniper.LevelDirect, current.ShowDMMessages
		}
		if show {
			d.notify(ctx, sniper.Notification{
				Level:  level,
				Source: message.AuthorTag(),
				Text:   message.Content + message.AttachmentSuffix(),
				Link:   message.Link(),
				Spy:    d.watched(message.AuthorID()),
			})
		}
	}

	if err := d.deps.Cache.Add(message); err != nil {
		return fmt.Errorf("cache message %s: %w", message.ID, err)
	}

	return nil
}

func (d *Dispatcher) handleMessageUpdate(ctx context.Context, raw json.RawMessage) error {
	message, err := decodeMessage(raw)
	if err != nil {
		return err
	}
	// Embed unfurls arrive as updates without a user edit.
	if message.HasEmbeds {
		return nil
	}

	current := d.deps.Settings()
	old, hadOld := d.deps.Cache.Get(message.ID)
	fromBot := message.FromBot() || (message.Author == nil && hadOld && old.FromBot())
	if fromBot && !current.ShowBotMessages {
		return nil
	}

	if _, _, err := d.deps.Cache.Update(message); err != nil {
		return fmt.Errorf("cache update %s: %w", message.ID, err)
	}

	author := message.AuthorTag()
	if message.Author == nil && hadOld {
		author = old.AuthorTag()
	}
	oldContent := oldContentUnavailable
	if hadOld {
		oldContent = old.Content
	}
	authorID := message.AuthorID()
	if authorID == "" && hadOld {
		authorID = old.AuthorID()
	}

	if current.ShowUpdatedMessages {
		d.notify(ctx, sniper.Notification{
			Level:  sniper.LevelUpdated,
			Source: author,
			Text:   fmt.Sprintf("\"%s\" ---> \"%s\"", oldContent, message.Content),
			Link:   message.Link(),
			Spy:    d.watched(authorID),
		})
	}
	if d.deps.Webhooks != nil {
		if err := d.deps.Webhooks.MessageUpdated(ctx, author, oldContent, message.Content); err != nil {
			d.logger.DebugContext(ctx, "update webhook failed", "message_id", message.ID, "error", err)
		}
	}

	return nil
}

type deletePayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

func (d *Dispatcher) handleMessageDelete(ctx context.Context, raw json.RawMessage) error {
	var payload deletePayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return fmt.Errorf("%w: missing message id", ErrMalformedEvent)
	}

	cached, ok := d.deps.Cache.Get(payload.ID)
	if !ok || cached.Author == nil {
		return nil
	}
	current := d.deps.Settings()
	if cached.FromBot() && !current.ShowBotMessages {
		return nil
	}

	deleted, ok := d.deps.Cache.Delete(payload.ID)
	if !ok {
		return nil
	}
	content := deleted.Content + deleted.AttachmentSuffix()

	if current.ShowDeletedMessages {
		d.notify(ctx, sniper.Notification{
			Level:  sniper.LevelDeleted,
			Source: deleted.AuthorTag(),
			Text:   fmt.Sprintf("\"%s\" was deleted.", content),
			Spy:    d.watched(deleted.AuthorID()),
		})
	}
	if d.deps.Webhooks != nil {
		if err := d.deps.Webhooks.MessageDeleted(ctx, deleted.AuthorTag(), content); err != nil {
			d.logger.DebugContext(ctx, "delete webhook failed", "message_id", deleted.ID, "error", err)
		}
	}

	return nil
}
