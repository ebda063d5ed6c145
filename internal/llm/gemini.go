package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultGeminiAPIVersion = "v1beta"
)

// GeminiConfig configures the Gemini-backed asker.
type GeminiConfig struct {
	// APIKey authenticates requests.
	APIKey string
	// BaseURL optionally overrides the endpoint.
	BaseURL string
	// Model defaults to gemini-2.5-flash.
	Model string
}

type geminiModelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Gemini answers prompts through the Gemini API.
type Gemini struct {
	models geminiModelsClient
	model  string
}

// NewGemini builds a Gemini asker.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("new gemini asker: missing api_key")
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("new gemini asker: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: defaultGeminiAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if client == nil || client.Models == nil {
		return nil, fmt.Errorf("new gemini client: models client is nil")
	}

	return &Gemini{models: client.Models, model: cfg.Model}, nil
}

// Ask sends prompt as a single user turn and returns the concatenated text parts.
func (g *Gemini) Ask(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", fmt.Errorf("gemini ask: nil client")
	}

	response, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini ask: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("gemini ask: empty response")
	}

	return strings.TrimSpace(responseText(response)), nil
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(response *genai.GenerateContentResponse) string {
	if len(response.Candidates) == 0 || response.Candidates[0] == nil {
		return ""
	}
	content := response.Candidates[0].Content
	if content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		builder.WriteString(part.Text)
	}

	return builder.String()
}

var _ Asker = (*Gemini)(nil)
