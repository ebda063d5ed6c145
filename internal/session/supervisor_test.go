package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ex-sniper/internal/gateway"
	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

type fakeRunner struct {
	token   string
	fail    error
	started chan struct{}
	// linger holds Run past cancellation until closed.
	linger chan struct{}

	mu       sync.Mutex
	state    gateway.State
	presence string
}

func (r *fakeRunner) Run(ctx context.Context) error {
	r.setState(gateway.StateStreaming)
	close(r.started)
	if r.fail != nil {
		r.setState(gateway.StateFailed)
		return r.fail
	}
	<-ctx.Done()
	if r.linger != nil {
		<-r.linger
	}
	r.setState(gateway.StateDisconnected)
	return ctx.Err()
}

func (r *fakeRunner) UpdateStatus(status string, afk bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence = status
	return nil
}

func (r *fakeRunner) setState(state gateway.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

func (r *fakeRunner) State() gateway.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type runnerFactory struct {
	mu      sync.Mutex
	fail    error
	linger  chan struct{}
	runners []*fakeRunner
}

func (f *runnerFactory) build(token string) (Runner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	runner := &fakeRunner{token: token, fail: f.fail, linger: f.linger, started: make(chan struct{})}
	f.runners = append(f.runners, runner)
	return runner, nil
}

func (f *runnerFactory) built() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runners)
}

func (f *runnerFactory) runner(t *testing.T, index int) *fakeRunner {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= len(f.runners) {
		t.Fatalf("runner %d not built (have %d)", index, len(f.runners))
	}
	return f.runners[index]
}

func startSupervisor(t *testing.T, session *Context, factory Factory, options ...SupervisorOption) *Supervisor {
	t.Helper()

	supervisor, err := NewSupervisor(session, factory, options...)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("supervisor Run: %v", err)
		}
	})

	return supervisor
}

func awaitStarted(t *testing.T, runner *fakeRunner) {
	t.Helper()
	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not start")
	}
}

func TestSupervisorLifecycle(t *testing.T) {
	t.Parallel()

	session := NewContext("", settings.NewStore(nil))
	factory := &runnerFactory{}
	supervisor := startSupervisor(t, session, factory.build)
	ctx := context.Background()

	if err := supervisor.Start(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("Start without token err = %v", err)
	}
	if err := supervisor.Stop(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Stop before start err = %v", err)
	}
	if err := supervisor.UpdateStatus("idle", false); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("UpdateStatus before start err = %v", err)
	}

	if err := supervisor.Start(ctx, " tok-1 "); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := factory.runner(t, 0)
	awaitStarted(t, first)
	if first.token != "tok-1" || session.Token() != "tok-1" {
		t.Fatalf("token = %q / %q", first.token, session.Token())
	}
	if supervisor.State() != gateway.StateStreaming {
		t.Fatalf("state = %s", supervisor.State())
	}
	if err := supervisor.UpdateStatus("dnd", false); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	first.mu.Lock()
	presence := first.presence
	first.mu.Unlock()
	if presence != "dnd" {
		t.Fatalf("presence = %q", presence)
	}
	if err := supervisor.Start(ctx, "tok-2"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v", err)
	}

	session.SetSelf(sniper.User{ID: "1", Username: "me", Discriminator: "0001"})
	if status := supervisor.Status(); status != "streaming as me#0001" {
		t.Fatalf("Status = %q", status)
	}

	if err := supervisor.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if first.State() != gateway.StateDisconnected {
		t.Fatal("first runner was not stopped by restart")
	}
	second := factory.runner(t, 1)
	awaitStarted(t, second)
	if second.token != "tok-1" {
		t.Fatalf("restart token = %q", second.token)
	}
	if _, ok := session.Self(); ok {
		t.Fatal("identity must be cleared when a session stops")
	}

	if err := supervisor.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if supervisor.State() != gateway.StateDisconnected {
		t.Fatalf("state after stop = %s", supervisor.State())
	}
}

func TestSupervisorRecordsSessionFailure(t *testing.T) {
	t.Parallel()

	session := NewContext("bad", settings.NewStore(nil))
	factory := &runnerFactory{fail: gateway.ErrAuthFailure}
	supervisor := startSupervisor(t, session, factory.build)

	if err := supervisor.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	awaitStarted(t, factory.runner(t, 0))

	deadline := time.Now().Add(5 * time.Second)
	for supervisor.LastError() == nil {
		if time.Now().After(deadline) {
			t.Fatal("failure was not recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !errors.Is(supervisor.LastError(), gateway.ErrAuthFailure) {
		t.Fatalf("LastError = %v", supervisor.LastError())
	}
	if status := supervisor.Status(); !strings.HasPrefix(status, "failed (last error:") {
		t.Fatalf("Status = %q", status)
	}

	// The failed session is reaped, so a new start is accepted.
	if err := supervisor.Start(context.Background(), "good"); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestSupervisorRejectsRequestsAfterExit(t *testing.T) {
	t.Parallel()

	supervisor, err := NewSupervisor(NewContext("tok", settings.NewStore(nil)), (&runnerFactory{}).build)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := supervisor.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := supervisor.Start(context.Background(), ""); !errors.Is(err, ErrSupervisorStopped) {
		t.Fatalf("err = %v", err)
	}
	if err := supervisor.Run(context.Background()); err == nil {
		t.Fatal("second Run should be rejected")
	}
}

func TestSupervisorWaitsForTimedOutSession(t *testing.T) {
	t.Parallel()

	session := NewContext("tok", settings.NewStore(nil))
	factory := &runnerFactory{linger: make(chan struct{})}
	supervisor := startSupervisor(t, session, factory.build, WithShutdownTimeout(20*time.Millisecond))
	ctx := context.Background()

	if err := supervisor.Start(ctx, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	awaitStarted(t, factory.runner(t, 0))

	if err := supervisor.Restart(ctx); !errors.Is(err, ErrStopPending) {
		t.Fatalf("Restart err = %v, want ErrStopPending", err)
	}
	if err := supervisor.Start(ctx, ""); !errors.Is(err, ErrStopPending) {
		t.Fatalf("Start err = %v, want ErrStopPending", err)
	}
	if got := factory.built(); got != 1 {
		t.Fatalf("runners built = %d, want 1 while the old session lingers", got)
	}
	if status := supervisor.Status(); !strings.Contains(status, "timed out") {
		t.Fatalf("Status = %q", status)
	}

	close(factory.linger)
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := supervisor.Start(ctx, "")
		if err == nil {
			break
		}
		if !errors.Is(err, ErrStopPending) || time.Now().After(deadline) {
			t.Fatalf("Start after exit err = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	awaitStarted(t, factory.runner(t, 1))
}
