// Package dispatch routes gateway dispatch events to handlers that apply the
// display filter policy, feed the history cache, and hand self-authored
// commands to the command executor.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

// Dispatch event types with registered handlers.
const (
	EventMessageCreate         = "MESSAGE_CREATE"
	EventMessageUpdate         = "MESSAGE_UPDATE"
	EventMessageDelete         = "MESSAGE_DELETE"
	EventRelationshipAdd       = "RELATIONSHIP_ADD"
	EventRelationshipRemove    = "RELATIONSHIP_REMOVE"
	EventVoiceStateUpdate      = "VOICE_STATE_UPDATE"
	EventMessageReactionAdd    = "MESSAGE_REACTION_ADD"
	EventMessageReactionRemove = "MESSAGE_REACTION_REMOVE"
	EventTypingStart           = "TYPING_START"
)

const defaultLookupTimeout = 10 * time.Second

// ErrMalformedEvent reports a payload that could not be decoded; the event is
// skipped.
var ErrMalformedEvent = errors.New("dispatch: malformed event")

// ErrUnknownEvent reports an event type without a handler.
var ErrUnknownEvent = errors.New("dispatch: unknown event type")

// MessageCache is the history cache surface used by message handlers.
type MessageCache interface {
	Add(message sniper.Message) error
	Update(message sniper.Message) (sniper.Message, bool, error)
	Delete(messageID string) (sniper.Message, bool)
	Get(messageID string) (sniper.Message, bool)
}

// WatchList reports whether an id is watched.
type WatchList interface {
	Contains(id string) bool
}

// IdentityCache memoizes identity lookups.
type IdentityCache interface {
	Add(user sniper.User)
	Get(userID string) (sniper.User, bool)
}

// CommandSubmitter runs one command line as a detached task.
// Submit must return without waiting for the command to finish.
type CommandSubmitter interface {
	Submit(ctx context.Context, line string, origin sniper.Message)
}

// Webhooks mirrors edits and deletions.
type Webhooks interface {
	MessageUpdated(ctx context.Context, author string, oldContent string, newContent string) error
	MessageDeleted(ctx context.Context, author string, content string) error
}

// Dependencies are the collaborators every handler may touch.
type Dependencies struct {
	// SelfID returns the authenticated account id, or empty before validation.
	SelfID func() string
	// Settings returns the current display settings.
	Settings func() settings.Settings
	Cache    MessageCache
	Watched  WatchList
	Users    IdentityCache
	Resolver sniper.UserResolver
	Commands CommandSubmitter
	Webhooks Webhooks
	Notifier sniper.Notifier
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(dispatcher *Dispatcher) {
		if logger != nil {
			dispatcher.logger = logger
		}
	}
}

// WithLookupTimeout bounds one identity lookup.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(dispatcher *Dispatcher) {
		if timeout > 0 {
			dispatcher.lookupTimeout = timeout
		}
	}
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) error

// Dispatcher maps event types to handlers. Handlers run on the caller's
// goroutine; the only potentially slow calls are one bounded identity lookup
// or one webhook post.
type Dispatcher struct {
	deps          Dependencies
	logger        *slog.Logger
	lookupTimeout time.Duration
	handlers      map[string]handlerFunc
}

// New builds the static handler table.
func New(deps Dependencies, options ...Option) (*Dispatcher, error) {
	if deps.Cache == nil {
		return nil, fmt.Errorf("new dispatcher: missing cache")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("new dispatcher: missing settings source")
	}
	if deps.SelfID == nil {
		deps.SelfID = func() string { return "" }
	}
	if deps.Notifier == nil {
		deps.Notifier = sniper.NopNotifier{}
	}

	dispatcher := &Dispatcher{
		deps:          deps,
		logger:        slog.Default(),
		lookupTimeout: defaultLookupTimeout,
	}
	for _, option := range options {
		option(dispatcher)
	}
	dispatcher.handlers = map[string]handlerFunc{
		EventMessageCreate:         dispatcher.handleMessageCreate,
		EventMessageUpdate:         dispatcher.handleMessageUpdate,
		EventMessageDelete:         dispatcher.handleMessageDelete,
		EventRelationshipAdd:       dispatcher.handleRelationshipAdd,
		EventRelationshipRemove:    dispatcher.handleRelationshipRemove,
		EventVoiceStateUpdate:      dispatcher.handleVoiceStateUpdate,
		EventMessageReactionAdd:    dispatcher.handleReactionAdd,
		EventMessageReactionRemove: dispatcher.handleReactionRemove,
		EventTypingStart:           dispatcher.handleTypingStart,
	}

	return dispatcher, nil
}

// Handles reports whether eventType has a handler.
func (d *Dispatcher) Handles(eventType string) bool {
	_, ok := d.handlers[eventType]
	return ok
}

// Dispatch runs the handler registered for event.Type.
func (d *Dispatcher) Dispatch(ctx context.Context, event *discordgo.Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrMalformedEvent)
	}
	handler, ok := d.handlers[event.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}
	if err := handler(ctx, event.RawData); err != nil {
		return fmt.Errorf("dispatch %s: %w", event.Type, err)
	}

	return nil
}

func decodePayload(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	return nil
}

func (d *Dispatcher) notify(ctx context.Context, notification sniper.Notification) {
	d.deps.Notifier.Notify(ctx, notification)
}

func (d *Dispatcher) watched(id string) bool {
	return id != "" && d.deps.Watched != nil && d.deps.Watched.Contains(id)
}
