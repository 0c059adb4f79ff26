package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/archlens/archlens/internal/resilience"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiProvider implements ChatProvider using Google's Gemini API.
type GeminiProvider struct {
	apiKey string
	model  string
	client *genai.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// GeminiOption configures the GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the model to use.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithGeminiRetry sets the retry policy for completion calls.
func WithGeminiRetry(cfg resilience.RetryConfig) GeminiOption {
	return func(p *GeminiProvider) {
		p.retry = cfg
	}
}

// WithGeminiLogger sets the logger used for retry diagnostics.
func WithGeminiLogger(logger *slog.Logger) GeminiOption {
	return func(p *GeminiProvider) {
		p.logger = logger
	}
}

// NewGeminiProvider creates a new Gemini chat provider. An empty apiKey
// falls back to GEMINI_API_KEY, then GOOGLE_API_KEY. Without a key the
// provider is constructed unavailable and Complete fails fast.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	p := &GeminiProvider{
		apiKey: apiKey,
		model:  geminiDefaultModel,
		retry:  resilience.DefaultRetryConfig(3),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.apiKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client; %w", err)
		}
		p.client = client
	}

	return p, nil
}

// Name returns the provider's unique identifier.
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// Available returns true if the provider is configured and ready.
func (p *GeminiProvider) Available() bool {
	return p.apiKey != "" && p.client != nil
}

// Complete sends the prompt and returns the model's text response.
func (p *GeminiProvider) Complete(ctx context.Context, prompt, label string) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("gemini provider not available; no API key configured")
	}

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(4096)

	var out string
	err := resilience.Retry(ctx, p.retry, label, p.logger, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, resilience.ChatTimeout, func(ctx context.Context) error {
			resp, err := model.GenerateContent(ctx, genai.Text(prompt))
			if err != nil {
				return normalizeGeminiError(err)
			}
			text := geminiResponseText(resp)
			if text == "" {
				return fmt.Errorf("no completion content returned")
			}
			out = text
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion for %s failed; %w", label, err)
	}
	return out, nil
}

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// geminiResponseText concatenates the text parts of the first candidate.
func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// normalizeGeminiError maps googleapi errors onto HTTPStatusError so the
// shared transient classification applies.
func normalizeGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &resilience.HTTPStatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
