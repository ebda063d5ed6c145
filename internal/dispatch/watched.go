package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/internal/discord"
	"ex-sniper/pkg/sniper"
)

var relationshipAdded = map[int]string{
	1: "Added a new friend",
	2: "Blocked a user",
	3: "Received a friend request",
	4: "Sent a friend request",
	5: "Friend request pending",
}

var relationshipRemoved = map[int]string{
	1: "Removed a friend",
	2: "Unblocked a user",
	3: "Rejected a friend request",
	4: "Canceled a friend request",
	5: "Friend request no longer pending",
}

func (d *Dispatcher) handleRelationshipAdd(ctx context.Context, raw json.RawMessage) error {
	return d.handleRelationship(ctx, raw, relationshipAdded)
}

func (d *Dispatcher) handleRelationshipRemove(ctx context.Context, raw json.RawMessage) error {
	return d.handleRelationship(ctx, raw, relationshipRemoved)
}

func (d *Dispatcher) handleRelationship(ctx context.Context, raw json.RawMessage, texts map[int]string) error {
	var payload discord.RelationshipPayload
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	userID := payload.UserID()
	if userID == "" {
		return fmt.Errorf("%w: missing relationship user id", ErrMalformedEvent)
	}

	text, ok := texts[payload.Type]
	if !ok {
		text = "Changed relationship status"
	}
	d.notify(ctx, sniper.Notification{
		Level: sniper.LevelRelationship,
		Text:  fmt.Sprintf("%s with user ID: %s.", text, userID),
		Spy:   d.watched(userID),
	})

	return nil
}

func (d *Dispatcher) handleVoiceStateUpdate(ctx context.Context, raw json.RawMessage) error {
	var payload discordgo.VoiceState
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	return d.notifyWatched(ctx, payload.UserID, sniper.LevelVoice, "updated their voice state.", "")
}

func (d *Dispatcher) handleReactionAdd(ctx context.Context, raw json.RawMessage) error {
	return d.handleReaction(ctx, raw, "added")
}

func (d *Dispatcher) handleReactionRemove(ctx context.Context, raw json.RawMessage) error {
	return d.handleReaction(ctx, raw, "removed")
}

func (d *Dispatcher) handleReaction(ctx context.Context, raw json.RawMessage, verb string) error {
	var payload discordgo.MessageReaction
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	link := sniper.MessageLink(payload.GuildID, payload.ChannelID, payload.MessageID)
	text := fmt.Sprintf("%s a reaction: %s.", verb, payload.Emoji.Name)

	return d.notifyWatched(ctx, payload.UserID, sniper.LevelReaction, text, link)
}

func (d *Dispatcher) handleTypingStart(ctx context.Context, raw json.RawMessage) error {
	var payload discordgo.TypingStart
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}

	return d.notifyWatched(ctx, payload.UserID, sniper.LevelTyping, "is typing.", "")
}

// notifyWatched discards events from ids outside the watch list; watched ids
// are resolved to a tag before the spy-tagged notification is emitted.
func (d *Dispatcher) notifyWatched(ctx context.Context, userID string, level sniper.Level, text string, link string) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user id", ErrMalformedEvent)
	}
	if !d.watched(userID) {
		return nil
	}

	user, err := d.lookup(ctx, userID)
	if err != nil {
		d.logger.DebugContext(ctx, "watched identity lookup failed", "user_id", userID, "error", err)
		return nil
	}
	d.notify(ctx, sniper.Notification{
		Level:  level,
		Source: user.Tag(),
		Text:   text,
		Link:   link,
		Spy:    true,
	})

	return nil
}

func (d *Dispatcher) lookup(ctx context.Context, userID string) (sniper.User, error) {
	if d.deps.Users != nil {
		if user, ok := d.deps.Users.Get(userID); ok {
			return user, nil
		}
	}
	if d.deps.Resolver == nil {
		return sniper.User{}, fmt.Errorf("lookup %s: %w", userID, sniper.ErrUnknownUser)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.lookupTimeout)
	defer cancel()

	user, err := d.deps.Resolver.User(lookupCtx, userID)
	if err != nil {
		return sniper.User{}, fmt.Errorf("lookup %s: %w", userID, err)
	}
	if d.deps.Users != nil {
		d.deps.Users.Add(user)
	}

	return user, nil
}
