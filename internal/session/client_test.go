package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

type recordingLifecycle struct {
	calls []string
	err   error
}

func (l *recordingLifecycle) Start(_ context.Context, token string) error {
	l.calls = append(l.calls, "start:"+token)
	return l.err
}

func (l *recordingLifecycle) Stop(context.Context) error {
	l.calls = append(l.calls, "stop")
	return l.err
}

func (l *recordingLifecycle) Restart(context.Context) error {
	l.calls = append(l.calls, "restart")
	return l.err
}

func (l *recordingLifecycle) Status() string { return "streaming" }

func (l *recordingLifecycle) UpdateStatus(status string, afk bool) error {
	l.calls = append(l.calls, fmt.Sprintf("presence:%s:%t", status, afk))
	return l.err
}

func newTestClient(t *testing.T) (*Client, *recordingLifecycle) {
	t.Helper()

	lifecycle := &recordingLifecycle{}
	client, err := NewClient(lifecycle, NewContext("tok", settings.NewStore(nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return client, lifecycle
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(nil, NewContext("", settings.NewStore(nil))); err == nil {
		t.Fatal("expected error for nil lifecycle")
	}
	if _, err := NewClient(&recordingLifecycle{}, NewContext("", nil)); err == nil {
		t.Fatal("expected error for missing settings")
	}
}

func TestClientLifecycleForwarding(t *testing.T) {
	t.Parallel()

	client, lifecycle := newTestClient(t)
	ctx := context.Background()

	if err := client.Start(ctx, "  abc "); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := client.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if err := client.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := client.SetPresence(" IDLE ", true); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if err := client.SetPresence("away", false); !errors.Is(err, ErrUnknownPresence) {
		t.Fatalf("SetPresence unknown err = %v", err)
	}

	want := []string{"start:abc", "restart", "stop", "presence:idle:true"}
	if len(lifecycle.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", lifecycle.calls, want)
	}
	for i := range want {
		if lifecycle.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q", i, lifecycle.calls[i], want[i])
		}
	}
	if client.Status() != "streaming" {
		t.Fatalf("Status = %q", client.Status())
	}
}

func TestClientSettingsEdits(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)

	if err := client.SetPrefix(" ! "); err != nil {
		t.Fatalf("SetPrefix: %v", err)
	}
	if got := client.Settings().Prefix; got != "!" {
		t.Fatalf("prefix = %q", got)
	}
	if err := client.SetPrefix("a b"); err == nil {
		t.Fatal("prefix with whitespace should be rejected")
	}
	if got := client.Settings().Prefix; got != "!" {
		t.Fatalf("rejected prefix leaked into settings: %q", got)
	}

	if err := client.SetShow("bot", false); err != nil {
		t.Fatalf("SetShow: %v", err)
	}
	if client.Settings().ShowBotMessages {
		t.Fatal("bot messages still shown")
	}
	if err := client.SetShow("nope", true); !errors.Is(err, settings.ErrUnknownFlag) {
		t.Fatalf("SetShow unknown err = %v", err)
	}
}

func TestClientWebhookEdits(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	const hook = "https://discord.com/api/webhooks/123/secret"

	if err := client.SetWebhookURL("ftp://example.com/x"); !errors.Is(err, sniper.ErrInvalidOutboundRequest) {
		t.Fatalf("invalid url err = %v", err)
	}
	if client.Webhook().Configured() {
		t.Fatal("invalid url must not be stored")
	}

	if err := client.SetWebhookURL(hook); err != nil {
		t.Fatalf("SetWebhookURL: %v", err)
	}
	webhook := client.Webhook()
	if webhook.URL != hook || !webhook.OnConnect || !webhook.OnUpdatedMessage || !webhook.OnDeletedMessage {
		t.Fatalf("webhook = %+v", webhook)
	}

	if err := client.SetWebhookTrigger("updated", false); err != nil {
		t.Fatalf("SetWebhookTrigger: %v", err)
	}
	if client.Webhook().OnUpdatedMessage {
		t.Fatal("updated trigger still enabled")
	}
	if err := client.SetWebhookTrigger("typing", true); !errors.Is(err, ErrUnknownTrigger) {
		t.Fatalf("unknown trigger err = %v", err)
	}

	// Re-enabling keeps the trigger selection the operator made.
	if err := client.SetWebhookURL(hook); err != nil {
		t.Fatalf("SetWebhookURL again: %v", err)
	}
	if client.Webhook().OnUpdatedMessage {
		t.Fatal("explicit trigger choice was overwritten")
	}

	if err := client.SetWebhookURL("off"); err != nil {
		t.Fatalf("SetWebhookURL off: %v", err)
	}
	if got := client.Webhook().URL; got != settings.DisabledWebhookURL {
		t.Fatalf("url = %q, want disabled", got)
	}
}
