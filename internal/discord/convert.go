package discord

import (
	"github.com/bwmarrin/discordgo"

	"ex-sniper/pkg/sniper"
)

// ToMessage projects a platform message into the cache shape.
func ToMessage(message *discordgo.Message) sniper.Message {
	if message == nil {
		return sniper.Message{}
	}

	projected := sniper.Message{
		ID:        message.ID,
		ChannelID: message.ChannelID,
		GuildID:   message.GuildID,
		Content:   message.Content,
		HasEmbeds: len(message.Embeds) > 0,
	}
	if message.Author != nil {
		projected.Author = &sniper.Author{
			ID:            message.Author.ID,
			Username:      message.Author.Username,
			Discriminator: message.Author.Discriminator,
			Bot:           message.Author.Bot,
		}
	}
	for _, attachment := range message.Attachments {
		if attachment == nil || attachment.URL == "" {
			continue
		}
		projected.AttachmentURLs = append(projected.AttachmentURLs, attachment.URL)
	}

	return projected
}

// ToUser projects a platform user.
func ToUser(user *discordgo.User) sniper.User {
	if user == nil {
		return sniper.User{}
	}

	return sniper.User{
		ID:            user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		GlobalName:    user.GlobalName,
		Avatar:        user.Avatar,
		Banner:        user.Banner,
		Bot:           user.Bot,
	}
}
