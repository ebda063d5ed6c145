// Package gateway maintains the persistent event stream: credential check,
// identify handshake, heartbeats, receive loop, and reconnect with backoff.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"ex-sniper/internal/clock"
	"ex-sniper/internal/safe"
	"ex-sniper/pkg/sniper"
)

const (
	// DefaultURL is the gateway endpoint used when none is configured.
	DefaultURL = "wss://gateway.discord.gg/?v=9&encoding=json"

	readLimit        = 10 * 1000 * 1000
	handshakeTimeout = 30 * time.Second
	notifySource     = "Websocket"
)

var (
	// ErrAuthFailure reports that the credential was rejected; the session
	// cannot start and is not retried.
	ErrAuthFailure = errors.New("gateway: authentication failed")
	// ErrAlreadyRunning reports a second concurrent Run call.
	ErrAlreadyRunning = errors.New("gateway: manager already running")

	errReconnectRequested = errors.New("gateway: server requested reconnect")
	errInvalidSession     = errors.New("gateway: session invalidated")
)

// Dispatcher receives decoded dispatch events in stream order.
type Dispatcher interface {
	// Handles reports whether eventType has a registered handler.
	Handles(eventType string) bool
	// Dispatch runs the handler for one event. Errors are logged, never fatal.
	Dispatch(ctx context.Context, event *discordgo.Event) error
}

// Option mutates manager configuration.
type Option func(*Manager)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(manager *Manager) {
		if logger != nil {
			manager.logger = logger
		}
	}
}

// WithNotifier sets the operator notification sink.
func WithNotifier(notifier sniper.Notifier) Option {
	return func(manager *Manager) {
		if notifier != nil {
			manager.notifier = notifier
		}
	}
}

// WithURL overrides the gateway endpoint.
func WithURL(url string) Option {
	return func(manager *Manager) {
		if strings.TrimSpace(url) != "" {
			manager.url = url
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(manager *Manager) {
		if dialer != nil {
			manager.dialer = dialer
		}
	}
}

// WithClock replaces the clock used for heartbeats and reconnect waits.
func WithClock(c clock.Clock) Option {
	return func(manager *Manager) {
		if c != nil {
			manager.clock = c
		}
	}
}

// WithProperties overrides the identify client metadata.
func WithProperties(properties Properties) Option {
	return func(manager *Manager) {
		manager.properties = properties
	}
}

// WithOnValidated registers a hook called once the credential is accepted.
func WithOnValidated(hook func(ctx context.Context, self sniper.User)) Option {
	return func(manager *Manager) {
		manager.onValidated = hook
	}
}

// Manager owns one session lifecycle:
// Disconnected → Validating → Streaming ⇄ Reconnecting, or Failed.
//
// The stream handle never leaves the manager. State, RetryDelay, and
// UpdateStatus are safe to call from other goroutines while Run is active.
type Manager struct {
	token       string
	validator   sniper.IdentityChecker
	dispatcher  Dispatcher
	logger      *slog.Logger
	notifier    sniper.Notifier
	url         string
	dialer      *websocket.Dialer
	clock       clock.Clock
	properties  Properties
	onValidated func(ctx context.Context, self sniper.User)

	state      atomic.Int32
	retryDelay atomic.Int64
	sequence   atomic.Int64
	running    atomic.Bool

	mu     sync.Mutex
	active *gatewayConn
}

// New creates a manager for token.
func New(token string, validator sniper.IdentityChecker, dispatcher Dispatcher, options ...Option) *Manager {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	manager := &Manager{
		token:      token,
		validator:  validator,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		notifier:   sniper.NopNotifier{},
		url:        DefaultURL,
		dialer:     &dialer,
		clock:      clock.Real(),
		properties: DefaultProperties(),
	}
	for _, option := range options {
		option(manager)
	}
	manager.retryDelay.Store(int64(baseRetryDelay))

	return manager
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// RetryDelay returns the wait used before the most recent (or next) redial.
func (m *Manager) RetryDelay() time.Duration {
	return time.Duration(m.retryDelay.Load())
}

// LastSequence returns the last dispatch sequence observed on any stream.
func (m *Manager) LastSequence() int64 {
	return m.sequence.Load()
}

// Run validates the credential and keeps a stream open until ctx ends.
//
// It returns ErrAuthFailure when validation fails, leaving the manager in
// StateFailed without ever dialing. Otherwise it retries forever with
// exponential backoff and returns ctx.Err() once ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	self, err := m.validate(ctx)
	if err != nil {
		return err
	}
	if m.onValidated != nil {
		m.onValidated(ctx, self)
	}

	policy := newReconnectBackoff()
	for {
		m.transition(ctx, StateStreaming, sniper.LevelNotification, "Opening gateway stream...")
		established, streamErr := m.runStream(ctx)
		if ctx.Err() != nil {
			m.transition(ctx, StateDisconnected, sniper.LevelNotification, "Session stopped.")
			return ctx.Err()
		}
		if established {
			policy.Reset()
		}
		if streamErr != nil {
			m.notify(ctx, sniper.LevelError, "Exception", fmt.Sprintf("Exception: %v...", streamErr))
		}

		delay := policy.NextBackOff()
		m.retryDelay.Store(int64(delay))
		m.transition(ctx, StateReconnecting, sniper.LevelNotification,
			fmt.Sprintf("Connection failed. Retrying in %s...", delay))
		m.logger.WarnContext(ctx, "gateway stream ended",
			"established", established,
			"retry_delay", delay,
			"error", streamErr,
		)

		select {
		case <-ctx.Done():
			m.transition(ctx, StateDisconnected, sniper.LevelNotification, "Session stopped.")
			return ctx.Err()
		case <-m.clock.After(delay):
		}
	}
}

// UpdateStatus sends a presence update on the active stream.
func (m *Manager) UpdateStatus(status string, afk bool) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active == nil {
		return fmt.Errorf("update status: %w", sniper.ErrNotConnected)
	}
	if err := active.writeJSON(presenceFrame(status, afk)); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	return nil
}

func (m *Manager) validate(ctx context.Context) (sniper.User, error) {
	m.transition(ctx, StateValidating, sniper.LevelNotification, "Validating token...")

	if strings.TrimSpace(m.token) == "" {
		m.transition(ctx, StateFailed, sniper.LevelError, "Invalid token, stopping connection attempts....")
		return sniper.User{}, fmt.Errorf("%w: empty token", ErrAuthFailure)
	}
	self, err := m.validator.Me(ctx)
	if err != nil {
		m.transition(ctx, StateFailed, sniper.LevelError, "Invalid token, stopping connection attempts....")
		return sniper.User{}, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	m.notify(ctx, sniper.LevelSuccess, notifySource, fmt.Sprintf("Token validated for user %s", self.Tag()))

	return self, nil
}

// runStream runs one dial → identify → hello → receive cycle. established
// reports whether the hello handshake completed.
func (m *Manager) runStream(ctx context.Context) (established bool, err error) {
	streamID := uuid.NewString()
	logger := m.logger.With("stream_id", streamID)

	conn, response, err := m.dialer.DialContext(ctx, m.url, nil)
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(readLimit)
	active := &gatewayConn{conn: conn}
	defer active.close()
	stopWatch := context.AfterFunc(ctx, active.close)
	defer stopWatch()

	if err := active.writeJSON(identifyFrame(m.token, m.properties)); err != nil {
		return false, fmt.Errorf("send identify: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return false, fmt.Errorf("set hello deadline: %w", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("read hello: %w", err)
	}
	helloEvent, err := decodeEvent(raw)
	if err != nil {
		return false, err
	}
	hello, err := decodeHello(helloEvent)
	if err != nil {
		return false, err
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return false, fmt.Errorf("clear read deadline: %w", err)
	}
	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

	m.mu.Lock()
	m.active = active
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
	}()

	logger.InfoContext(ctx, "gateway stream established", "heartbeat_interval", interval)
	m.notify(ctx, sniper.LevelSuccess, notifySource, "Listening Messages...")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return NewHeartbeat(m.clock, interval, func() error {
			return active.writeJSON(heartbeatFrame())
		}).Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		active.close()
		return nil
	})
	group.Go(func() error {
		return m.receive(groupCtx, active)
	})

	err = group.Wait()
	m.notify(ctx, sniper.LevelError, notifySource, "Connection closing, cancelling heartbeat task...")

	return true, err
}

// receive is the single consumer of inbound frames; events are dispatched
// inline so handlers observe them strictly in stream order.
func (m *Manager) receive(ctx context.Context, active *gatewayConn) error {
	for {
		_, raw, err := active.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		event, err := decodeEvent(raw)
		if err != nil {
			return err
		}
		if event.Sequence > 0 {
			m.sequence.Store(event.Sequence)
		}

		switch event.Operation {
		case OpDispatch:
			m.route(ctx, event)
		case OpHeartbeat:
			if err := active.writeJSON(heartbeatFrame()); err != nil {
				return fmt.Errorf("answer heartbeat request: %w", err)
			}
		case OpReconnect:
			return errReconnectRequested
		case OpInvalidSession:
			return errInvalidSession
		case OpHeartbeatACK, OpHello:
		default:
			m.logger.DebugContext(ctx, "ignored gateway opcode", "op", event.Operation)
		}
	}
}

func (m *Manager) route(ctx context.Context, event *discordgo.Event) {
	if m.dispatcher == nil || !m.dispatcher.Handles(event.Type) {
		m.notify(ctx, sniper.LevelDebug, notifySource, "Ignored event "+event.Type)
		return
	}

	m.notify(ctx, sniper.LevelDebug, notifySource, "Received event "+event.Type)
	err := safe.Run("dispatch "+event.Type, func() error {
		return m.dispatcher.Dispatch(ctx, event)
	})
	if err != nil {
		m.logger.DebugContext(ctx, "dispatch failed",
			"event_type", event.Type,
			"sequence", event.Sequence,
			"error", err,
		)
	}
}

func (m *Manager) transition(ctx context.Context, next State, level sniper.Level, text string) {
	previous := State(m.state.Swap(int32(next)))
	m.logger.DebugContext(ctx, "gateway state changed", "from", previous, "to", next)
	m.notify(ctx, level, notifySource, text)
}

func (m *Manager) notify(ctx context.Context, level sniper.Level, source string, text string) {
	m.notifier.Notify(ctx, sniper.Notification{Level: level, Source: source, Text: text})
}

// gatewayConn wraps one connection; gorilla connections allow a single concurrent
// writer, so writes are serialized.
type gatewayConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *gatewayConn) writeJSON(value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *gatewayConn) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}
