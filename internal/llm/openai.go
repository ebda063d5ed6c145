package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI-backed asker.
type OpenAIConfig struct {
	// APIKey authenticates requests.
	APIKey string
	// BaseURL optionally overrides the endpoint.
	BaseURL string
	// Model defaults to gpt-4o-mini.
	Model string
	// MaxRetries optionally overrides the SDK retry count.
	//
	// Nil keeps the SDK default behavior.
	MaxRetries *int
}

type openAIResponsesClient interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

type openAIResponseServiceAdapter struct {
	service responses.ResponseService
}

func (a openAIResponseServiceAdapter) New(
	ctx context.Context,
	body responses.ResponseNewParams,
	opts ...option.RequestOption,
) (*responses.Response, error) {
	return a.service.New(ctx, body, opts...)
}

// OpenAI answers prompts through the Responses API.
type OpenAI struct {
	responses openAIResponsesClient
	model     string
}

// NewOpenAI builds an OpenAI asker.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	normalized, err := normalizeOpenAIConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new openai asker: %w", err)
	}

	options := []option.RequestOption{option.WithAPIKey(normalized.APIKey)}
	if normalized.BaseURL != "" {
		options = append(options, option.WithBaseURL(normalized.BaseURL))
	}
	if normalized.MaxRetries != nil {
		options = append(options, option.WithMaxRetries(*normalized.MaxRetries))
	}
	client := openai.NewClient(options...)

	return &OpenAI{
		responses: openAIResponseServiceAdapter{service: client.Responses},
		model:     normalized.Model,
	}, nil
}

// Ask sends prompt as a single user input and returns the output text.
func (o *OpenAI) Ask(ctx context.Context, prompt string) (string, error) {
	if o == nil || o.responses == nil {
		return "", fmt.Errorf("openai ask: nil client")
	}

	response, err := o.responses.New(ctx, responses.ResponseNewParams{
		Model: o.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai ask: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("openai ask: empty response")
	}

	return strings.TrimSpace(response.OutputText()), nil
}

func normalizeOpenAIConfig(cfg OpenAIConfig) (OpenAIConfig, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)

	if cfg.APIKey == "" {
		return OpenAIConfig{}, fmt.Errorf("missing api_key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return OpenAIConfig{}, err
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return OpenAIConfig{}, fmt.Errorf("max_retries must be >= 0")
	}

	return cfg, nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base_url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("parse base_url: must include scheme and host")
	}

	return nil
}

var _ Asker = (*OpenAI)(nil)
