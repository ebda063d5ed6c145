package command

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ex-sniper/pkg/sniper"
)

type clientCall struct {
	op        string
	channelID string
	messageID string
	content   string
}

type captureClient struct {
	mu      sync.Mutex
	calls   []clientCall
	pages   map[string][]sniper.Message
	sendErr error
	nextID  int
}

func newCaptureClient() *captureClient {
	return &captureClient{pages: make(map[string][]sniper.Message)}
}

func (c *captureClient) record(call clientCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *captureClient) SendMessage(_ context.Context, channelID string, content string) (*sniper.Message, error) {
	c.record(clientCall{op: "send", channelID: channelID, content: content})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.nextID++

	return &sniper.Message{ID: fmt.Sprintf("sent-%d", c.nextID), ChannelID: channelID, Content: content}, nil
}

func (c *captureClient) EditMessage(_ context.Context, channelID string, messageID string, content string) (*sniper.Message, error) {
	c.record(clientCall{op: "edit", channelID: channelID, messageID: messageID, content: content})
	return &sniper.Message{ID: messageID, ChannelID: channelID, Content: content}, nil
}

func (c *captureClient) DeleteMessage(_ context.Context, channelID string, messageID string) error {
	c.record(clientCall{op: "delete", channelID: channelID, messageID: messageID})
	return nil
}

func (c *captureClient) ListMessages(_ context.Context, channelID string, limit int, before string) ([]sniper.Message, error) {
	c.record(clientCall{op: "list", channelID: channelID, messageID: before, content: fmt.Sprint(limit)})

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pages[before], nil
}

func (c *captureClient) snapshot() []clientCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]clientCall(nil), c.calls...)
}

func (c *captureClient) ops(op string) []clientCall {
	var matched []clientCall
	for _, call := range c.snapshot() {
		if call.op == op {
			matched = append(matched, call)
		}
	}
	return matched
}

// lastSend returns the content of the final send call.
func (c *captureClient) lastSend(t *testing.T) string {
	t.Helper()

	sends := c.ops("send")
	if len(sends) == 0 {
		t.Fatalf("no message sent; calls = %+v", c.snapshot())
	}
	return sends[len(sends)-1].content
}

type captureNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *captureNotifier) Notify(_ context.Context, notification sniper.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, notification.Text)
}

func (n *captureNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

func origin(channelID string) sniper.Message {
	return sniper.Message{
		ID:        "900",
		ChannelID: channelID,
		GuildID:   "G1",
		Author:    &sniper.Author{ID: "100", Username: "self", Discriminator: "0001"},
		Content:   ".cmd",
	}
}

func newTestExecutor(t *testing.T, deps Dependencies, options ...Option) (*Executor, *captureClient) {
	t.Helper()

	if deps.SelfID == nil {
		deps.SelfID = func() string { return "100" }
	}
	table, err := NewTable(Builtins(deps)...)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	client := newCaptureClient()
	executor, err := NewExecutor(table, client, options...)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	t.Cleanup(executor.Close)

	return executor, client
}
