// Package llm answers one-shot prompts for the ask commands.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names used by the command table.
const (
	ProviderOpenAI = "gpt"
	ProviderGemini = "gemini"
)

// ErrNotConfigured reports a provider key with no configured provider.
var ErrNotConfigured = errors.New("llm: provider not configured")

// ErrEmptyPrompt rejects blank prompts before any request is made.
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// Asker answers a single prompt with plain text.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Registry resolves configured askers by provider key.
//
// The map is copied on construction and never mutated, so Resolve is safe for
// concurrent command executions.
type Registry struct {
	askers map[string]Asker
}

// NewRegistry builds a registry. Nil askers are skipped so that providers
// without credentials simply stay unconfigured.
func NewRegistry(askers map[string]Asker) (*Registry, error) {
	cloned := make(map[string]Asker, len(askers))
	for key, asker := range askers {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return nil, fmt.Errorf("new llm registry: empty provider key")
		}
		if asker == nil {
			continue
		}
		if _, exists := cloned[trimmed]; exists {
			return nil, fmt.Errorf("new llm registry: duplicate provider key %s", trimmed)
		}
		cloned[trimmed] = asker
	}

	return &Registry{askers: cloned}, nil
}

// Resolve returns the asker registered under provider.
func (r *Registry) Resolve(provider string) (Asker, error) {
	if r == nil {
		return nil, fmt.Errorf("resolve %s: %w", provider, ErrNotConfigured)
	}
	asker, ok := r.askers[strings.TrimSpace(provider)]
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", provider, ErrNotConfigured)
	}

	return asker, nil
}

// Ask resolves provider and forwards prompt to it.
func (r *Registry) Ask(ctx context.Context, provider string, prompt string) (string, error) {
	asker, err := r.Resolve(provider)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	answer, err := asker.Ask(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("ask %s: %w", provider, err)
	}

	return answer, nil
}
