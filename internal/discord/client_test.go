package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"ex-sniper/pkg/sniper"
)

// rewriteTransport sends every request to the test server regardless of host.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	rewritten := request.Clone(request.Context())
	rewritten.URL.Scheme = t.target.Scheme
	rewritten.URL.Host = t.target.Host
	rewritten.Host = t.target.Host

	return http.DefaultTransport.RoundTrip(rewritten)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	client, err := New("user-token", WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return client
}

func writeJSON(t *testing.T, writer http.ResponseWriter, status int, value any) {
	t.Helper()
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(value); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func rateLimitBody() map[string]any {
	return map[string]any{"message": "You are being rate limited.", "retry_after": 0.001, "global": false}
}

func TestClientSendMessage(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var authorization, body string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if request.Method != http.MethodPost || request.URL.Path != "/api/v9/channels/C1/messages" {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		authorization = request.Header.Get("Authorization")
		raw, _ := io.ReadAll(request.Body)
		body = string(raw)
		writeJSON(t, writer, http.StatusOK, map[string]any{
			"id":         "M1",
			"channel_id": "C1",
			"content":    "hello",
			"author":     map[string]any{"id": "U1", "username": "alice", "discriminator": "0001"},
		})
	}))

	message, err := client.SendMessage(context.Background(), "C1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if authorization != "user-token" {
		t.Fatalf("authorization = %q, want raw user token", authorization)
	}
	if !strings.Contains(body, `"content":"hello"`) {
		t.Fatalf("body = %s", body)
	}
	if message.ID != "M1" || message.AuthorTag() != "alice#0001" {
		t.Fatalf("message = %+v", message)
	}
}

func TestClientSendMessageValidatesChannel(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	if _, err := client.SendMessage(context.Background(), " ", "x"); !errors.Is(err, sniper.ErrInvalidOutboundRequest) {
		t.Fatalf("err = %v, want ErrInvalidOutboundRequest", err)
	}
}

func TestClientDeleteMessageRetriesOnceOnRateLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		rateLimited int32
		wantCalls   int32
		wantLimited bool
	}{
		{name: "retry succeeds", rateLimited: 1, wantCalls: 2},
		{name: "second rate limit surfaces", rateLimited: 5, wantCalls: 2, wantLimited: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				if request.Method != http.MethodDelete {
					t.Errorf("method = %s", request.Method)
				}
				if calls.Add(1) <= testCase.rateLimited {
					writeJSON(t, writer, http.StatusTooManyRequests, rateLimitBody())
					return
				}
				writer.WriteHeader(http.StatusNoContent)
			}))

			err := client.DeleteMessage(context.Background(), "C1", "M1")
			if got := calls.Load(); got != testCase.wantCalls {
				t.Fatalf("calls = %d, want %d", got, testCase.wantCalls)
			}
			if !testCase.wantLimited {
				if err != nil {
					t.Fatalf("DeleteMessage: %v", err)
				}
				return
			}
			if _, limited := sniper.AsOutboundRateLimit(err); !limited {
				t.Fatalf("err = %v, want rate limited", err)
			}
		})
	}
}

func TestClientMeUnauthorized(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v9/users/@me" {
			t.Errorf("path = %s", request.URL.Path)
		}
		writeJSON(t, writer, http.StatusUnauthorized, map[string]any{"message": "401: Unauthorized", "code": 0})
	}))

	_, err := client.Me(context.Background())
	if !sniper.IsUnauthorized(err) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestClientListMessages(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var query url.Values
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		query = request.URL.Query()
		mu.Unlock()
		writeJSON(t, writer, http.StatusOK, []map[string]any{
			{"id": "M3", "channel_id": "C1", "content": "newest", "author": map[string]any{"id": "U1"}},
			{"id": "M2", "channel_id": "C1", "content": "older", "attachments": []map[string]any{{"id": "A", "url": "https://cdn/a.png"}}},
		})
	}))

	messages, err := client.ListMessages(context.Background(), "C1", 50, "M4")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if query.Get("limit") != "50" || query.Get("before") != "M4" {
		t.Fatalf("query = %v", query)
	}
	if len(messages) != 2 || messages[0].ID != "M3" || messages[1].AttachmentURLs[0] != "https://cdn/a.png" {
		t.Fatalf("messages = %+v", messages)
	}
}

func TestClientPermanentErrorClassification(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(t, writer, http.StatusNotFound, map[string]any{"message": "Unknown Message", "code": 10008})
	}))

	_, err := client.EditMessage(context.Background(), "C1", "M1", "x")
	outboundErr, ok := sniper.AsOutboundError(err)
	if !ok {
		t.Fatalf("err = %v, want OutboundError", err)
	}
	if outboundErr.Kind != sniper.OutboundErrorKindPermanent || outboundErr.Code != 10008 || outboundErr.StatusCode != 404 {
		t.Fatalf("outbound error = %+v", outboundErr)
	}
	if outboundErr.Operation != sniper.OutboundOperationEditMessage {
		t.Fatalf("operation = %s", outboundErr.Operation)
	}
}

func TestParseWebhookURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       string
		wantID    string
		wantToken string
		wantErr   bool
	}{
		{raw: "https://discord.com/api/webhooks/123/abc", wantID: "123", wantToken: "abc"},
		{raw: "https://discord.com/api/v10/webhooks/123/abc/", wantID: "123", wantToken: "abc"},
		{raw: "https://discord.com/api/webhooks/123", wantErr: true},
		{raw: "NULL", wantErr: true},
		{raw: "ftp://discord.com/api/webhooks/1/2", wantErr: true},
	}

	for _, testCase := range tests {
		id, token, err := ParseWebhookURL(testCase.raw)
		if testCase.wantErr {
			if err == nil {
				t.Fatalf("ParseWebhookURL(%q) expected error", testCase.raw)
			}
			continue
		}
		if err != nil || id != testCase.wantID || token != testCase.wantToken {
			t.Fatalf("ParseWebhookURL(%q) = %q, %q, %v", testCase.raw, id, token, err)
		}
	}
}

func TestClientExecuteWebhookOmitsAccountToken(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var authorization, path string
	var payload struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Color       int    `json:"color"`
		} `json:"embeds"`
	}
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		authorization = request.Header.Get("Authorization")
		path = request.URL.Path
		if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		writer.WriteHeader(http.StatusNoContent)
	}))

	err := client.ExecuteWebhook(context.Background(), "https://discord.com/api/webhooks/123/secret", Embed{
		Title:       "Deleted Message",
		Description: "[bob#0001]: gone",
		Footer:      "Delete detected at",
	})
	if err != nil {
		t.Fatalf("ExecuteWebhook: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if authorization != "" {
		t.Fatalf("authorization header leaked: %q", authorization)
	}
	if path != "/api/v9/webhooks/123/secret" {
		t.Fatalf("path = %s", path)
	}
	if len(payload.Embeds) != 1 || payload.Embeds[0].Title != "Deleted Message" || payload.Embeds[0].Color != embedColor {
		t.Fatalf("payload = %+v", payload)
	}
}
