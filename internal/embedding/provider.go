// Package embedding wraps the embeddings API with the concurrency gate and
// per-minute token window the pipeline depends on.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/archlens/archlens/internal/resilience"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
)

// Provider generates embedding vectors for batches of text.
type Provider interface {
	Name() string
	Available() bool
	Dimensions() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIProvider talks to an OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	httpClient *http.Client
}

// OpenAIOption configures the OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithModel sets the embedding model.
func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

// WithBaseURL points the provider at a compatible endpoint other than the
// OpenAI default.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// WithDimensions sets the expected vector dimensionality.
func WithDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) { p.dimensions = dims }
}

// WithAPIKey sets the API key explicitly instead of reading the
// environment.
func WithAPIKey(key string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if key != "" {
			p.apiKey = key
		}
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.httpClient = client }
}

// NewOpenAIProvider creates an embeddings provider.
func NewOpenAIProvider(opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		dimensions: 1536,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider's identifier.
func (p *OpenAIProvider) Name() string {
	return "openai-embeddings"
}

// Available reports whether the provider is configured with a key.
func (p *OpenAIProvider) Available() bool {
	return p.apiKey != ""
}

// Dimensions returns the configured vector dimensionality.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// EmbedBatch requests one vector per input text. Vectors come back in
// input order regardless of how the API interleaves them.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.Available() {
		return nil, fmt.Errorf("embeddings provider not available; no API key configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	requestBody := map[string]any{
		"model": p.model,
		"input": texts,
	}
	if p.model == "text-embedding-3-small" || p.model == "text-embedding-3-large" {
		requestBody["dimensions"] = p.dimensions
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request; %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResp embeddingsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response; %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(apiResp.Data), len(texts))
	}

	sort.Slice(apiResp.Data, func(i, j int) bool { return apiResp.Data[i].Index < apiResp.Data[j].Index })

	vectors := make([][]float32, len(apiResp.Data))
	for i, d := range apiResp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// embeddingsResponse is the OpenAI-compatible embeddings API response.
type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}
