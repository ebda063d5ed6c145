package sniper

import "context"

// Level classifies one operator notification.
type Level string

const (
	// LevelSuccess marks a positive lifecycle milestone.
	LevelSuccess Level = "success"
	// LevelError marks a failure.
	LevelError Level = "error"
	// LevelNotification marks a neutral lifecycle message.
	LevelNotification Level = "notifications"
	// LevelServer marks a guild message.
	LevelServer Level = "server"
	// LevelDirect marks a direct message.
	LevelDirect Level = "dm"
	// LevelUpdated marks an edited message.
	LevelUpdated Level = "updated"
	// LevelDeleted marks a deleted message.
	LevelDeleted Level = "deleted"
	// LevelRelationship marks a relationship change.
	LevelRelationship Level = "relationship"
	// LevelVoice marks a voice state change.
	LevelVoice Level = "voice"
	// LevelReaction marks a reaction change.
	LevelReaction Level = "reaction"
	// LevelTyping marks a typing indicator.
	LevelTyping Level = "typing"
	// LevelDebug marks low-value diagnostics such as ignored events.
	LevelDebug Level = "debug"
)

// Notification is one operator-facing line.
type Notification struct {
	// Level classifies the line.
	Level Level
	// Source names the emitting component or the message author tag.
	Source string
	// Text is the rendered body.
	Text string
	// Link optionally deep-links to the related message.
	Link string
	// Spy reports whether the subject is a watched identifier.
	Spy bool
}

// Notifier receives operator notifications.
type Notifier interface {
	// Notify delivers one notification; implementations must not block on network I/O.
	Notify(ctx context.Context, notification Notification)
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, notification Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notification Notification) {
	f(ctx, notification)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

// Notify discards notification.
func (NopNotifier) Notify(context.Context, Notification) {}

// MultiNotifier fans one notification out to several sinks in order.
type MultiNotifier []Notifier

// Notify forwards notification to every non-nil sink.
func (m MultiNotifier) Notify(ctx context.Context, notification Notification) {
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		notifier.Notify(ctx, notification)
	}
}
