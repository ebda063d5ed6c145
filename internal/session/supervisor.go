package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ex-sniper/internal/gateway"
	"ex-sniper/internal/safe"
	"ex-sniper/pkg/sniper"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultRequestTimeout  = 30 * time.Second
)

var (
	// ErrMissingToken reports a start request without any credential.
	ErrMissingToken = errors.New("session: missing token")
	// ErrAlreadyStarted reports a start request while a session is running.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrNotStarted reports a stop or restart request with no running session.
	ErrNotStarted = errors.New("session: not started")
	// ErrSupervisorStopped reports a request after the supervisor exited.
	ErrSupervisorStopped = errors.New("session: supervisor stopped")
	// ErrStopPending reports a start while a stopped session that outlived
	// the shutdown timeout is still running.
	ErrStopPending = errors.New("session: previous session still stopping")
)

// Runner is one gateway lifecycle bound to a credential.
type Runner interface {
	Run(ctx context.Context) error
	State() gateway.State
}

// PresenceUpdater is implemented by runners that can change the account
// presence on a live stream.
type PresenceUpdater interface {
	UpdateStatus(status string, afk bool) error
}

// Factory builds the runner for token.
type Factory func(token string) (Runner, error)

// SupervisorOption mutates supervisor configuration.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger injects a logger.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(supervisor *Supervisor) {
		if logger != nil {
			supervisor.logger = logger
		}
	}
}

// WithSupervisorNotifier sets the lifecycle notification sink.
func WithSupervisorNotifier(notifier sniper.Notifier) SupervisorOption {
	return func(supervisor *Supervisor) {
		if notifier != nil {
			supervisor.notifier = notifier
		}
	}
}

// WithShutdownTimeout bounds how long a stop waits for the runner to exit.
func WithShutdownTimeout(timeout time.Duration) SupervisorOption {
	return func(supervisor *Supervisor) {
		if timeout > 0 {
			supervisor.shutdownTimeout = timeout
		}
	}
}

type requestKind int

const (
	requestStart requestKind = iota
	requestStop
	requestRestart
)

type request struct {
	kind  requestKind
	token string
	reply chan error
}

type activeSession struct {
	runner Runner
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Supervisor runs at most one session at a time on a single goroutine.
// Start, Stop, and Restart are requests served by Run; they never spawn
// sessions themselves.
type Supervisor struct {
	session         *Context
	factory         Factory
	logger          *slog.Logger
	notifier        sniper.Notifier
	shutdownTimeout time.Duration

	requests chan request
	stopped  chan struct{}

	runMu   sync.Mutex
	running bool

	mu      sync.RWMutex
	current Runner
	lastErr error

	// active and lingering are owned by the Run goroutine. lingering is the
	// done channel of a stopped session that missed the shutdown timeout; no
	// new session launches until it closes.
	active    *activeSession
	lingering chan struct{}
}

// NewSupervisor creates a supervisor that builds runners through factory.
func NewSupervisor(session *Context, factory Factory, options ...SupervisorOption) (*Supervisor, error) {
	if session == nil {
		return nil, fmt.Errorf("new session supervisor: nil context")
	}
	if factory == nil {
		return nil, fmt.Errorf("new session supervisor: nil factory")
	}

	supervisor := &Supervisor{
		session:         session,
		factory:         factory,
		logger:          slog.Default(),
		notifier:        sniper.NopNotifier{},
		shutdownTimeout: defaultShutdownTimeout,
		requests:        make(chan request),
		stopped:         make(chan struct{}),
	}
	for _, option := range options {
		option(supervisor)
	}

	return supervisor, nil
}

// Run serves lifecycle requests until ctx is cancelled, then stops the
// active session.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.startRun(); err != nil {
		return err
	}
	defer close(s.stopped)

	for {
		var sessionDone <-chan struct{}
		if s.active != nil {
			sessionDone = s.active.done
		}

		select {
		case <-ctx.Done():
			s.stopActive()
			return nil
		case req := <-s.requests:
			req.reply <- s.handle(ctx, req)
		case <-sessionDone:
			s.reap()
		case <-s.lingering:
			s.lingering = nil
			s.logger.Info("timed out session exited")
		}
	}
}

func (s *Supervisor) startRun() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return fmt.Errorf("session supervisor run: already running")
	}
	s.running = true

	return nil
}

// Start begins a session with token, or with the context token when empty.
func (s *Supervisor) Start(ctx context.Context, token string) error {
	return s.submit(ctx, request{kind: requestStart, token: token})
}

// Stop ends the running session.
func (s *Supervisor) Stop(ctx context.Context) error {
	return s.submit(ctx, request{kind: requestStop})
}

// Restart stops the running session, if any, and starts a new one with the
// current token.
func (s *Supervisor) Restart(ctx context.Context) error {
	return s.submit(ctx, request{kind: requestRestart})
}

// Reconnect restarts the session with a bounded wait.
func (s *Supervisor) Reconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	return s.Restart(ctx)
}

func (s *Supervisor) submit(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)
	select {
	case s.requests <- req:
	case <-s.stopped:
		return ErrSupervisorStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) handle(ctx context.Context, req request) error {
	switch req.kind {
	case requestStart:
		if s.active != nil {
			return ErrAlreadyStarted
		}
		return s.launch(ctx, req.token)
	case requestStop:
		if s.active == nil {
			return ErrNotStarted
		}
		s.stopActive()
		return nil
	case requestRestart:
		s.stopActive()
		return s.launch(ctx, "")
	default:
		return fmt.Errorf("session supervisor: unknown request %d", req.kind)
	}
}

func (s *Supervisor) launch(ctx context.Context, token string) error {
	if s.lingering != nil {
		select {
		case <-s.lingering:
			s.lingering = nil
		default:
			return ErrStopPending
		}
	}
	if token != "" {
		s.session.SetToken(token)
	}
	token = s.session.Token()
	if token == "" {
		return ErrMissingToken
	}

	runner, err := s.factory(token)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	active := &activeSession{runner: runner, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(active.done)
		active.err = safe.Run("session", func() error {
			return runner.Run(sessionCtx)
		})
	}()

	s.active = active
	s.mu.Lock()
	s.current = runner
	s.lastErr = nil
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "session started")

	return nil
}

// reap records a session that ended on its own, such as an auth failure.
func (s *Supervisor) reap() {
	active := s.active
	s.active = nil
	active.cancel()

	s.finish(active.err)
	if active.err != nil && !isContextCancellation(active.err) {
		s.logger.Error("session ended", "error", active.err)
		s.notifier.Notify(context.Background(), sniper.Notification{
			Level:  sniper.LevelError,
			Source: "Session",
			Text:   fmt.Sprintf("Session ended: %v", active.err),
		})
	}
}

func (s *Supervisor) stopActive() {
	active := s.active
	if active == nil {
		return
	}
	s.active = nil
	active.cancel()

	select {
	case <-active.done:
		s.finish(active.err)
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("session did not stop within timeout", "timeout", s.shutdownTimeout)
		s.lingering = active.done
		s.finish(fmt.Errorf("session stop timed out after %s", s.shutdownTimeout))
	}
	s.logger.Info("session stopped")
}

func (s *Supervisor) finish(err error) {
	s.session.ClearSelf()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && !isContextCancellation(err) {
		s.lastErr = err
	}
}

// State returns the lifecycle phase of the current runner, or
// Disconnected when none is running.
func (s *Supervisor) State() gateway.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return gateway.StateDisconnected
	}

	return s.current.State()
}

// UpdateStatus changes the presence of the running session.
func (s *Supervisor) UpdateStatus(status string, afk bool) error {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	updater, ok := current.(PresenceUpdater)
	if !ok {
		return ErrNotStarted
	}

	return updater.UpdateStatus(status, afk)
}

// LastError returns the error that ended the previous session, if any.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastErr
}

// Status renders the current state for operators.
func (s *Supervisor) Status() string {
	status := s.State().String()
	if self, ok := s.session.Self(); ok {
		status += " as " + self.Tag()
	}
	if err := s.LastError(); err != nil {
		status += fmt.Sprintf(" (last error: %v)", err)
	}

	return status
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
