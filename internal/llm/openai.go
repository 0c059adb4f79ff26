package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/archlens/archlens/internal/resilience"
)

const openaiDefaultModel = "gpt-4o-mini"

// OpenAIProvider implements ChatProvider using OpenAI's chat completion API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *openai.Client
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// OpenAIOption configures the OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOpenAIBaseURL points the provider at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.baseURL = baseURL
	}
}

// WithOpenAIRetry sets the retry policy for completion calls.
func WithOpenAIRetry(cfg resilience.RetryConfig) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.retry = cfg
	}
}

// WithOpenAILogger sets the logger used for retry diagnostics.
func WithOpenAILogger(logger *slog.Logger) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.logger = logger
	}
}

// NewOpenAIProvider creates a new OpenAI chat provider. An empty apiKey
// falls back to the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	p := &OpenAIProvider{
		apiKey: apiKey,
		model:  openaiDefaultModel,
		retry:  resilience.DefaultRetryConfig(3),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	cfg := openai.DefaultConfig(p.apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	p.client = openai.NewClientWithConfig(cfg)

	return p
}

// Name returns the provider's unique identifier.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Available returns true if the provider is configured and ready.
func (p *OpenAIProvider) Available() bool {
	return p.apiKey != ""
}

// Complete sends the prompt and returns the model's text response.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt, label string) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("openai provider not available; no API key configured")
	}

	var out string
	err := resilience.Retry(ctx, p.retry, label, p.logger, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, resilience.ChatTimeout, func(ctx context.Context) error {
			resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
				Temperature: 0.1,
				MaxTokens:   4096,
			})
			if err != nil {
				return normalizeOpenAIError(err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("no completion choices returned")
			}
			out = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("openai completion for %s failed; %w", label, err)
	}
	return out, nil
}

// normalizeOpenAIError maps the client library's error types onto
// HTTPStatusError so the shared transient classification applies.
func normalizeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &resilience.HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &resilience.HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
