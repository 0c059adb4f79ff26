package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/archlens/archlens/internal/resilience"
)

// mockChatProvider implements ChatProvider for testing.
type mockChatProvider struct {
	name      string
	available bool
	response  string
}

func (p *mockChatProvider) Name() string    { return p.name }
func (p *mockChatProvider) Available() bool { return p.available }
func (p *mockChatProvider) Complete(ctx context.Context, prompt, label string) (string, error) {
	return p.response, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	p := &mockChatProvider{name: "test", available: true}
	if err := r.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Duplicate registration should fail
	if err := r.Register(p); err != ErrProviderExists {
		t.Errorf("expected ErrProviderExists, got %v", err)
	}
}

func TestRegistry_FirstAvailableBecomesDefault(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&mockChatProvider{name: "offline", available: false}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockChatProvider{name: "online", available: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if p.Name() != "online" {
		t.Errorf("default = %q, want %q", p.Name(), "online")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("missing"); err != ErrProviderNotFound {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}

	if err := r.Register(&mockChatProvider{name: "test", available: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	p, err := r.Get("test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name() != "test" {
		t.Errorf("provider name = %q, want %q", p.Name(), "test")
	}
}

func TestRegistry_SetDefault(t *testing.T) {
	r := NewRegistry()

	if err := r.SetDefault("missing"); err != ErrProviderNotFound {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}

	if err := r.Register(&mockChatProvider{name: "a", available: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockChatProvider{name: "b", available: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := r.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if p.Name() != "b" {
		t.Errorf("default = %q, want %q", p.Name(), "b")
	}
}

func TestRegistry_NoAvailableProvider(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&mockChatProvider{name: "offline", available: false}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Default(); err != ErrNoAvailableProvider {
		t.Errorf("expected ErrNoAvailableProvider, got %v", err)
	}
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&mockChatProvider{name: "a", available: true}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockChatProvider{name: "b", available: false}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	available := r.Available()
	if len(available) != 1 || available[0].Name() != "a" {
		t.Errorf("Available() = %d providers, want just %q", len(available), "a")
	}
}

func TestOpenAIProviderUnavailable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	p := NewOpenAIProvider("")
	if p.Available() {
		t.Fatal("provider without key reports available")
	}
	if _, err := p.Complete(context.Background(), "prompt", "test"); err == nil {
		t.Error("Complete without key succeeded, want error")
	}
}

func TestGeminiProviderUnavailable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	p, err := NewGeminiProvider(context.Background(), "")
	if err != nil {
		t.Fatalf("NewGeminiProvider failed: %v", err)
	}
	if p.Available() {
		t.Fatal("provider without key reports available")
	}
	if _, err := p.Complete(context.Background(), "prompt", "test"); err == nil {
		t.Error("Complete without key succeeded, want error")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNormalizeOpenAIError(t *testing.T) {
	plain := errors.New("boom")
	if got := normalizeOpenAIError(plain); got != plain {
		t.Errorf("plain error changed to %v", got)
	}

	apiErr := &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
	wrapped := normalizeOpenAIError(apiErr)
	var statusErr *resilience.HTTPStatusError
	if !errors.As(wrapped, &statusErr) {
		t.Fatalf("API error not converted: %T", wrapped)
	}
	if statusErr.StatusCode != 429 {
		t.Errorf("status = %d, want 429", statusErr.StatusCode)
	}
	if !resilience.IsTransient(wrapped) {
		t.Error("429 not classified transient")
	}
}
