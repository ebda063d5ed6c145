package sniper

import (
	"fmt"
	"strings"
	"time"
)

// DirectGuildID is the guild path segment used for direct-message links.
const DirectGuildID = "@me"

// discordEpoch is the snowflake epoch in milliseconds.
const discordEpoch = 1420070400000

// Author describes who wrote a message.
type Author struct {
	// ID is the author snowflake.
	ID string
	// Username is the account name.
	Username string
	// Discriminator is the legacy four-digit tag; "0" or empty for migrated accounts.
	Discriminator string
	// Bot reports whether the author is a bot account.
	Bot bool
}

// Tag renders the author as "name#discriminator" with the fallbacks the console uses.
func (a Author) Tag() string {
	name := a.Username
	if name == "" {
		name = "Unknown"
	}
	discriminator := a.Discriminator
	if discriminator == "" {
		discriminator = "0000"
	}

	return name + "#" + discriminator
}

// Message is one observed chat message as kept by the history cache.
type Message struct {
	// ID is the message snowflake.
	ID string
	// ChannelID is the partition the message belongs to.
	ChannelID string
	// GuildID is empty for direct messages.
	GuildID string
	// Author describes the writer; nil when the payload carried none.
	Author *Author
	// Content is the textual body.
	Content string
	// AttachmentURLs lists attachment download URLs.
	AttachmentURLs []string
	// HasEmbeds reports whether the payload carried embeds.
	HasEmbeds bool
	// Seq is the insertion order assigned by the cache.
	Seq uint64
}

// Validate checks the identity fields used as cache keys.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.ChannelID) == "" {
		return fmt.Errorf("%w: missing channel id", ErrInvalidMessage)
	}

	return nil
}

// IsDirect reports whether the message was not sent in a guild.
func (m Message) IsDirect() bool {
	return m.GuildID == ""
}

// AuthorID returns the author id or empty when unknown.
func (m Message) AuthorID() string {
	if m.Author == nil {
		return ""
	}

	return m.Author.ID
}

// AuthorTag returns the author tag or "Unknown".
func (m Message) AuthorTag() string {
	if m.Author == nil {
		return "Unknown"
	}

	return m.Author.Tag()
}

// FromBot reports whether the author is a bot account.
func (m Message) FromBot() bool {
	return m.Author != nil && m.Author.Bot
}

// Link renders the client deep link for the message.
func (m Message) Link() string {
	return MessageLink(m.GuildID, m.ChannelID, m.ID)
}

// AttachmentSuffix renders attachment URLs one per line, each prefixed by a newline.
func (m Message) AttachmentSuffix() string {
	var builder strings.Builder
	for _, url := range m.AttachmentURLs {
		builder.WriteString("\n")
		builder.WriteString(url)
	}

	return builder.String()
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	cloned := m
	if m.Author != nil {
		author := *m.Author
		cloned.Author = &author
	}
	if m.AttachmentURLs != nil {
		cloned.AttachmentURLs = append([]string(nil), m.AttachmentURLs...)
	}

	return cloned
}

// MessageLink renders a client deep link for one message.
func MessageLink(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = DirectGuildID
	}

	return fmt.Sprintf("discord://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// User is a resolved account identity.
type User struct {
	// ID is the user snowflake.
	ID string
	// Username is the account name.
	Username string
	// Discriminator is the legacy tag.
	Discriminator string
	// GlobalName is the display name when set.
	GlobalName string
	// Avatar is the avatar hash.
	Avatar string
	// Banner is the banner hash.
	Banner string
	// Bot reports whether the account is a bot.
	Bot bool
}

// Tag renders the user as "name#discriminator".
func (u User) Tag() string {
	return Author{Username: u.Username, Discriminator: u.Discriminator}.Tag()
}

// ProfileLink renders a client deep link to the user's profile.
func (u User) ProfileLink() string {
	return "discord://discord.com/users/" + u.ID
}

// AvatarURL returns the CDN URL of the user's avatar or empty when unset.
func (u User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	extension := "png"
	if strings.HasPrefix(u.Avatar, "a_") {
		extension = "gif"
	}

	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.%s?size=1024", u.ID, u.Avatar, extension)
}

// BannerURL returns the CDN URL of the user's banner or empty when unset.
func (u User) BannerURL() string {
	if u.Banner == "" {
		return ""
	}
	extension := "png"
	if strings.HasPrefix(u.Banner, "a_") {
		extension = "gif"
	}

	return fmt.Sprintf("https://cdn.discordapp.com/banners/%s/%s.%s?size=1024", u.ID, u.Banner, extension)
}

// SnowflakeTime decodes the creation time embedded in a snowflake id.
func SnowflakeTime(id string) (time.Time, error) {
	var raw uint64
	if _, err := fmt.Sscan(strings.TrimSpace(id), &raw); err != nil {
		return time.Time{}, fmt.Errorf("parse snowflake %q: %w", id, err)
	}

	return time.UnixMilli(int64(raw>>22) + discordEpoch).UTC(), nil
}
