// Package settings holds the operator-editable display and webhook settings
// and persists them as flat JSON documents.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"ex-sniper/internal/docstore"
)

// DisabledWebhookURL is the stored webhook URL when no webhook is configured.
const DisabledWebhookURL = "NULL"

// ErrUnknownFlag reports a display flag name that does not exist.
var ErrUnknownFlag = errors.New("settings: unknown flag")

// Settings controls command parsing and which events are shown.
type Settings struct {
	Prefix              string `json:"prefix"`
	ShowServerMessages  bool   `json:"show_server_messages"`
	ShowDMMessages      bool   `json:"show_dm_messages"`
	ShowUpdatedMessages bool   `json:"show_updated_messages"`
	ShowDeletedMessages bool   `json:"show_deleted_messages"`
	ShowBotMessages     bool   `json:"show_bot_messages"`
	TokenInfo           string `json:"token_inf"`
}

// DefaultSettings returns the settings used when no document exists.
func DefaultSettings() Settings {
	return Settings{
		Prefix:              ".",
		ShowServerMessages:  true,
		ShowDMMessages:      true,
		ShowUpdatedMessages: true,
		ShowDeletedMessages: true,
		ShowBotMessages:     true,
	}
}

// Validate checks the settings before they are stored.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Prefix) == "" {
		return fmt.Errorf("settings: prefix is required")
	}
	if strings.ContainsAny(s.Prefix, " \t\r\n") {
		return fmt.Errorf("settings: prefix %q must not contain whitespace", s.Prefix)
	}

	return nil
}

// flagFields maps short flag names to their fields.
var flagFields = map[string]func(*Settings) *bool{
	"server":  func(s *Settings) *bool { return &s.ShowServerMessages },
	"dm":      func(s *Settings) *bool { return &s.ShowDMMessages },
	"updated": func(s *Settings) *bool { return &s.ShowUpdatedMessages },
	"deleted": func(s *Settings) *bool { return &s.ShowDeletedMessages },
	"bot":     func(s *Settings) *bool { return &s.ShowBotMessages },
}

// FlagNames lists the short display flag names accepted by SetFlag.
func FlagNames() []string {
	names := make([]string, 0, len(flagFields))
	for name := range flagFields {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SetFlag toggles one display flag by its short name.
func (s *Settings) SetFlag(name string, enabled bool) error {
	field, ok := flagFields[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFlag, name, strings.Join(FlagNames(), ", "))
	}
	*field(s) = enabled

	return nil
}

// Webhook controls which events are mirrored to a webhook.
type Webhook struct {
	URL              string `json:"webhook_url"`
	OnConnect        bool   `json:"on_connect"`
	OnUpdatedMessage bool   `json:"on_updated_message"`
	OnDeletedMessage bool   `json:"on_deleted_message"`
}

// DefaultWebhook returns the webhook settings used when no document exists.
func DefaultWebhook() Webhook {
	return Webhook{URL: DisabledWebhookURL}
}

// Configured reports whether a webhook URL is set.
func (w Webhook) Configured() bool {
	url := strings.TrimSpace(w.URL)
	return url != "" && url != DisabledWebhookURL
}

// Documents persists flat JSON documents.
type Documents interface {
	Load(name string, target any) (bool, error)
	Save(name string, value any) error
}

// Option mutates store configuration.
type Option func(*Store)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// Store guards the current settings and writes every change through.
type Store struct {
	documents Documents
	logger    *slog.Logger

	mu       sync.RWMutex
	settings Settings
	webhook  Webhook
}

// NewStore creates a store holding defaults; documents may be nil for a
// memory-only store.
func NewStore(documents Documents, options ...Option) *Store {
	store := &Store{
		documents: documents,
		logger:    slog.Default(),
		settings:  DefaultSettings(),
		webhook:   DefaultWebhook(),
	}
	for _, option := range options {
		option(store)
	}

	return store
}

// Load reads both documents, keeping defaults for missing keys.
func (s *Store) Load() error {
	if s.documents == nil {
		return nil
	}

	loadedSettings := DefaultSettings()
	if _, err := s.documents.Load(docstore.SettingsDocument, &loadedSettings); err != nil {
		return fmt.Errorf("settings load: %w", err)
	}
	if err := loadedSettings.Validate(); err != nil {
		s.logger.Warn("invalid stored prefix, using default", "error", err)
		loadedSettings.Prefix = DefaultSettings().Prefix
	}

	loadedWebhook := DefaultWebhook()
	if _, err := s.documents.Load(docstore.WebhookDocument, &loadedWebhook); err != nil {
		return fmt.Errorf("webhook settings load: %w", err)
	}

	s.mu.Lock()
	s.settings = loadedSettings
	s.webhook = loadedWebhook
	s.mu.Unlock()

	return nil
}

// Settings returns a snapshot of the display settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings
}

// Webhook returns a snapshot of the webhook settings.
func (s *Store) Webhook() Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.webhook
}

// Prefix returns the current command prefix.
func (s *Store) Prefix() string {
	return s.Settings().Prefix
}

// UpdateSettings applies mutate to a copy, validates it, persists it, and
// publishes it.
func (s *Store) UpdateSettings(mutate func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if err := mutate(&next); err != nil {
		return s.settings, err
	}
	if err := next.Validate(); err != nil {
		return s.settings, err
	}
	if s.documents != nil {
		if err := s.documents.Save(docstore.SettingsDocument, next); err != nil {
			return s.settings, fmt.Errorf("settings save: %w", err)
		}
	}
	s.settings = next

	return next, nil
}

// UpdateWebhook applies mutate to a copy, persists it, and publishes it.
func (s *Store) UpdateWebhook(mutate func(*Webhook) error) (Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.webhook
	if err := mutate(&next); err != nil {
		return s.webhook, err
	}
	if strings.TrimSpace(next.URL) == "" {
		next.URL = DisabledWebhookURL
	}
	if s.documents != nil {
		if err := s.documents.Save(docstore.WebhookDocument, next); err != nil {
			return s.webhook, fmt.Errorf("webhook settings save: %w", err)
		}
	}
	s.webhook = next

	return next, nil
}
