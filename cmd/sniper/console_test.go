package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"ex-sniper/internal/session"
	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

type stubLifecycle struct {
	calls []string
}

func (l *stubLifecycle) Start(_ context.Context, token string) error {
	l.calls = append(l.calls, "start:"+token)
	return nil
}

func (l *stubLifecycle) Stop(context.Context) error {
	l.calls = append(l.calls, "stop")
	return session.ErrNotStarted
}

func (l *stubLifecycle) Restart(context.Context) error {
	l.calls = append(l.calls, "restart")
	return nil
}

func (l *stubLifecycle) Status() string { return "streaming as me#0001" }

func (l *stubLifecycle) UpdateStatus(status string, afk bool) error {
	if afk {
		status += ":afk"
	}
	l.calls = append(l.calls, "presence:"+status)
	return nil
}

type stubRelations struct {
	listed  []sniper.Relationship
	removed []string
}

func (r *stubRelations) Relationships(context.Context) ([]sniper.Relationship, error) {
	return r.listed, nil
}

func (r *stubRelations) RemoveRelationship(_ context.Context, userID string) error {
	r.removed = append(r.removed, userID)
	return nil
}

func newTestConsole(t *testing.T) (*console, *stubLifecycle, *bytes.Buffer) {
	t.Helper()

	lifecycle := &stubLifecycle{}
	client, err := session.NewClient(lifecycle, session.NewContext("", settings.NewStore(nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	var out bytes.Buffer
	echo := newConsoleNotifier()
	echo.setOutput(&out)

	return newConsole(client, &stubRelations{}, echo), lifecycle, &out
}

func TestConsoleSessionCommands(t *testing.T) {
	t.Parallel()

	c, lifecycle, out := newTestConsole(t)
	ctx := context.Background()

	for _, line := range []string{"start", `start "new token"`, "restart", "status", "presence DND afk"} {
		if err := c.execute(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if err := c.execute(ctx, "stop"); !errors.Is(err, session.ErrNotStarted) {
		t.Fatalf("stop err = %v", err)
	}

	if err := c.execute(ctx, "presence away"); !errors.Is(err, session.ErrUnknownPresence) {
		t.Fatalf("presence away err = %v", err)
	}
	if err := c.execute(ctx, "presence idle later"); err == nil {
		t.Fatal("expected usage error")
	}

	want := "start:,start:new token,restart,presence:dnd:afk,stop"
	if got := strings.Join(lifecycle.calls, ","); got != want {
		t.Fatalf("calls = %q, want %q", got, want)
	}
	if !strings.Contains(out.String(), "streaming as me#0001") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestConsoleSettingsCommands(t *testing.T) {
	t.Parallel()

	c, _, out := newTestConsole(t)
	ctx := context.Background()

	steps := []struct {
		line    string
		wantOut string
		wantErr bool
	}{
		{line: "prefix", wantOut: "prefix: ."},
		{line: "prefix !", wantOut: "prefix set to !"},
		{line: "show updated off", wantOut: "updated messages off"},
		{line: "show", wantOut: "server=on dm=on updated=off deleted=on bot=on"},
		{line: "show typing on", wantErr: true},
		{line: "show bot maybe", wantErr: true},
		{line: "webhook https://discord.com/api/webhooks/1/abc", wantOut: "webhook enabled"},
		{line: "webhook trigger deleted off", wantOut: "webhook deleted trigger off"},
		{line: "webhook", wantOut: "webhook=https://discord.com/api/webhooks/1/abc connect=on updated=on deleted=off"},
		{line: "webhook off", wantOut: "webhook disabled"},
		{line: "webhook trigger", wantErr: true},
	}

	for _, step := range steps {
		out.Reset()
		err := c.execute(ctx, step.line)
		if step.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", step.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", step.line, err)
		}
		if !strings.Contains(out.String(), step.wantOut) {
			t.Fatalf("%q output = %q, want %q", step.line, out.String(), step.wantOut)
		}
	}
}

func TestConsoleRelationshipCommands(t *testing.T) {
	t.Parallel()

	c, _, out := newTestConsole(t)
	relations := &stubRelations{listed: []sniper.Relationship{
		{Kind: sniper.RelationshipFriend, User: sniper.User{ID: "1", Username: "pal", Discriminator: "0001"}},
		{Kind: sniper.RelationshipIncoming, User: sniper.User{ID: "3", Username: "asker", Discriminator: "0003"}},
		{Kind: sniper.RelationshipFriend, User: sniper.User{ID: "2", Username: "mate", Discriminator: "0002"}},
	}}
	c.relations = relations
	ctx := context.Background()

	if err := c.execute(ctx, "relationships"); err != nil {
		t.Fatalf("relationships: %v", err)
	}
	want := "friends: 2\n" +
		"  pal#0001 (1) discord://discord.com/users/1\n" +
		"  mate#0002 (2) discord://discord.com/users/2\n" +
		"blocked: 0\n" +
		"incoming requests: 1\n" +
		"  asker#0003 (3) discord://discord.com/users/3\n" +
		"outgoing requests: 0\n"
	if out.String() != want {
		t.Fatalf("relationships output = %q, want %q", out.String(), want)
	}

	if err := c.execute(ctx, "unfriend <@!42>"); err != nil {
		t.Fatalf("unfriend: %v", err)
	}
	for _, line := range []string{"unfriend", "unfriend abc", "unfriend 1 2"} {
		if err := c.execute(ctx, line); err == nil {
			t.Fatalf("%q: expected error", line)
		}
	}
	if len(relations.removed) != 1 || relations.removed[0] != "42" {
		t.Fatalf("removed = %v", relations.removed)
	}
}

func TestConsoleParsing(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestConsole(t)
	ctx := context.Background()

	if err := c.execute(ctx, "   "); err != nil {
		t.Fatalf("blank line err = %v", err)
	}
	if err := c.execute(ctx, "QUIT"); !errors.Is(err, errQuit) {
		t.Fatalf("quit err = %v", err)
	}
	if err := c.execute(ctx, "frobnicate"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("unknown err = %v", err)
	}
	if err := c.execute(ctx, `start "unterminated`); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFormatNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		notification sniper.Notification
		want         string
	}{
		{
			name:         "plain",
			notification: sniper.Notification{Level: sniper.LevelSuccess, Text: "Connected"},
			want:         "[success] Connected",
		},
		{
			name: "spy with link",
			notification: sniper.Notification{
				Level:  sniper.LevelDeleted,
				Source: "user#0001",
				Text:   `"hi" was deleted.`,
				Link:   "discord://discord.com/channels/@me/1/2",
				Spy:    true,
			},
			want: `[deleted][spy] user#0001: "hi" was deleted. (discord://discord.com/channels/@me/1/2)`,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := formatNotification(testCase.notification); got != testCase.want {
				t.Fatalf("formatNotification = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestConsoleNotifierSkipsDebug(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	echo := newConsoleNotifier()
	echo.setOutput(&out)

	echo.Notify(context.Background(), sniper.Notification{Level: sniper.LevelDebug, Text: "ignored event"})
	echo.Notify(context.Background(), sniper.Notification{Level: sniper.LevelError, Text: "boom"})

	if out.String() != "[error] boom\n" {
		t.Fatalf("output = %q", out.String())
	}
}
