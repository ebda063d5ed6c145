package sniper

import (
	"errors"
	"testing"
	"time"
)

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{name: "valid", message: Message{ID: "1", ChannelID: "C1"}},
		{name: "missing id", message: Message{ChannelID: "C1"}, wantErr: true},
		{name: "missing channel", message: Message{ID: "1"}, wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.message.Validate()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidMessage) {
					t.Fatalf("err = %v, want ErrInvalidMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMessageCloneIsDeep(t *testing.T) {
	t.Parallel()

	original := Message{
		ID:             "1",
		ChannelID:      "C1",
		Author:         &Author{ID: "u1", Username: "alice"},
		AttachmentURLs: []string{"https://cdn.example/a.png"},
	}
	cloned := original.Clone()
	cloned.Author.Username = "mallory"
	cloned.AttachmentURLs[0] = "changed"

	if original.Author.Username != "alice" {
		t.Fatalf("original author mutated: %s", original.Author.Username)
	}
	if original.AttachmentURLs[0] != "https://cdn.example/a.png" {
		t.Fatalf("original attachments mutated: %v", original.AttachmentURLs)
	}
}

func TestMessageLinkAndTag(t *testing.T) {
	t.Parallel()

	direct := Message{ID: "3", ChannelID: "2"}
	if got := direct.Link(); got != "discord://discord.com/channels/@me/2/3" {
		t.Fatalf("direct link = %s", got)
	}
	guild := Message{ID: "3", ChannelID: "2", GuildID: "1"}
	if got := guild.Link(); got != "discord://discord.com/channels/1/2/3" {
		t.Fatalf("guild link = %s", got)
	}
	if got := direct.AuthorTag(); got != "Unknown" {
		t.Fatalf("tag without author = %s, want Unknown", got)
	}
	if got := (Author{Username: "bob"}).Tag(); got != "bob#0000" {
		t.Fatalf("tag = %s, want bob#0000", got)
	}
}

func TestSnowflakeTime(t *testing.T) {
	t.Parallel()

	// 175928847299117063 is the documented example snowflake.
	got, err := SnowflakeTime("175928847299117063")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.UnixMilli(1462015105796).UTC()
	if !got.Equal(want) {
		t.Fatalf("time = %s, want %s", got, want)
	}
	if _, err := SnowflakeTime("not-a-number"); err == nil {
		t.Fatal("expected parse error")
	}
}
