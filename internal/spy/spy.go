// Package spy keeps the persisted set of watched user ids.
package spy

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"ex-sniper/internal/docstore"
)

// Documents persists flat JSON documents.
type Documents interface {
	Load(name string, target any) (bool, error)
	Save(name string, value any) error
}

// Option mutates set configuration.
type Option func(*Set)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(set *Set) {
		if logger != nil {
			set.logger = logger
		}
	}
}

// Set is a persisted membership set of watched ids.
// Every successful mutation is written to the spy document as {id: true}.
type Set struct {
	documents Documents
	logger    *slog.Logger

	mu  sync.RWMutex
	ids map[string]bool
}

// New creates an empty set persisted through documents; documents may be nil
// for a memory-only set.
func New(documents Documents, options ...Option) *Set {
	set := &Set{
		documents: documents,
		logger:    slog.Default(),
		ids:       make(map[string]bool),
	}
	for _, option := range options {
		option(set)
	}

	return set
}

// Load replaces the in-memory set with the persisted document.
func (s *Set) Load() error {
	if s.documents == nil {
		return nil
	}

	var stored map[string]bool
	if _, err := s.documents.Load(docstore.SpyDocument, &stored); err != nil {
		return fmt.Errorf("spy load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = make(map[string]bool, len(stored))
	for id, watched := range stored {
		if watched && strings.TrimSpace(id) != "" {
			s.ids[id] = true
		}
	}
	s.logger.Debug("spy list loaded", "count", len(s.ids))

	return nil
}

// Add watches id. It reports false when id is already watched.
func (s *Set) Add(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("spy add: empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[id] {
		return false, nil
	}
	s.ids[id] = true
	if err := s.saveLocked(); err != nil {
		return true, fmt.Errorf("spy add %s: %w", id, err)
	}

	return true, nil
}

// Remove stops watching id. It reports false when id was not watched.
func (s *Set) Remove(id string) (bool, error) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ids[id] {
		return false, nil
	}
	delete(s.ids, id)
	if err := s.saveLocked(); err != nil {
		return true, fmt.Errorf("spy remove %s: %w", id, err)
	}

	return true, nil
}

// Contains reports whether id is watched.
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ids[id]
}

// List returns watched ids in ascending order.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (s *Set) saveLocked() error {
	if s.documents == nil {
		return nil
	}
	snapshot := make(map[string]bool, len(s.ids))
	for id := range s.ids {
		snapshot[id] = true
	}

	return s.documents.Save(docstore.SpyDocument, snapshot)
}
