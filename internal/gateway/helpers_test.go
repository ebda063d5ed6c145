package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"ex-sniper/pkg/sniper"
)

type fakeGateway struct {
	server      *httptest.Server
	connections chan *websocket.Conn
	dials       atomic.Int32
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()

	gateway := &fakeGateway{connections: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{}
	gateway.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gateway.dials.Add(1)
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		gateway.connections <- conn
	}))
	t.Cleanup(gateway.server.Close)

	return gateway
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *fakeGateway) accept(t *testing.T) *websocket.Conn {
	t.Helper()

	select {
	case conn := <-g.connections:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for gateway connection")
		return nil
	}
}

type inboundFrame struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d"`
}

func readFrame(t *testing.T, conn *websocket.Conn) inboundFrame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var frame inboundFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}

	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()

	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func sendHello(t *testing.T, conn *websocket.Conn, intervalMillis int) {
	t.Helper()

	writeFrame(t, conn, map[string]any{"op": OpHello, "d": map[string]any{"heartbeat_interval": intervalMillis}})
}

// handshake consumes identify and answers with hello.
func handshake(t *testing.T, conn *websocket.Conn, intervalMillis int) identifyData {
	t.Helper()

	frame := readFrame(t, conn)
	if frame.Op != OpIdentify {
		t.Fatalf("first frame op = %d, want identify", frame.Op)
	}
	var identify identifyData
	if err := json.Unmarshal(frame.Data, &identify); err != nil {
		t.Fatalf("decode identify: %v", err)
	}
	sendHello(t, conn, intervalMillis)

	return identify
}

type validatorFunc func(ctx context.Context) (sniper.User, error)

func (f validatorFunc) Me(ctx context.Context) (sniper.User, error) {
	return f(ctx)
}

func acceptAll() validatorFunc {
	return func(context.Context) (sniper.User, error) {
		return sniper.User{ID: "self", Username: "me", Discriminator: "0001"}, nil
	}
}

type captureDispatcher struct {
	mu      sync.Mutex
	handled map[string]bool
	events  []*discordgo.Event
	seen    chan *discordgo.Event
}

func newCaptureDispatcher(types ...string) *captureDispatcher {
	handled := make(map[string]bool, len(types))
	for _, eventType := range types {
		handled[eventType] = true
	}

	return &captureDispatcher{handled: handled, seen: make(chan *discordgo.Event, 32)}
}

func (d *captureDispatcher) Handles(eventType string) bool {
	return d.handled[eventType]
}

func (d *captureDispatcher) Dispatch(_ context.Context, event *discordgo.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	d.seen <- event

	return nil
}

type captureNotifier struct {
	mu            sync.Mutex
	notifications []sniper.Notification
}

func (n *captureNotifier) Notify(_ context.Context, notification sniper.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *captureNotifier) texts(contains string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	var matched []string
	for _, notification := range n.notifications {
		if strings.Contains(notification.Text, contains) {
			matched = append(matched, notification.Text)
		}
	}

	return matched
}

func eventually(t *testing.T, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", message)
}

type runResult struct {
	done chan struct{}
	err  error
}

func startManager(t *testing.T, manager *Manager) (context.CancelFunc, *runResult) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	result := &runResult{done: make(chan struct{})}
	go func() {
		defer close(result.done)
		result.err = manager.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-result.done
	})

	return cancel, result
}

func (r *runResult) wait(t *testing.T) error {
	t.Helper()

	select {
	case <-r.done:
		return r.err
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop")
		return nil
	}
}

// advanceUntil keeps moving a fake clock forward until condition holds.
func advanceUntil(t *testing.T, advance func(), condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		advance()
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", message)
}
