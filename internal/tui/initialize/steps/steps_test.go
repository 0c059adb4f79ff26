package steps

import (
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/archlens/archlens/internal/config"
)

func TestProviderStep_ApplyOpenAI(t *testing.T) {
	cfg := config.Starter()
	s := NewProviderStep()
	s.Init(cfg)

	// Select OpenAI, advance to the model phase, keep the first model.
	s.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if err := s.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected model 'gpt-4o-mini', got %q", cfg.LLM.Model)
	}
	if cfg.LLM.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("expected key env 'OPENAI_API_KEY', got %q", cfg.LLM.APIKeyEnv)
	}
}

func TestProviderStep_PrefillsFromConfig(t *testing.T) {
	cfg := config.Starter()
	cfg.LLM.Provider = "gemini"

	s := NewProviderStep()
	s.Init(cfg)

	if s.providerRadio.Value() != "gemini" {
		t.Errorf("expected cursor on 'gemini', got %q", s.providerRadio.Value())
	}
}

func TestEmbeddingsStep_Apply(t *testing.T) {
	cfg := config.Starter()
	s := NewEmbeddingsStep()
	s.Init(cfg)

	// Pick the large model.
	s.Update(tea.KeyMsg{Type: tea.KeyDown})
	s.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if err := s.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Embeddings.Model != "text-embedding-3-large" {
		t.Errorf("expected 'text-embedding-3-large', got %q", cfg.Embeddings.Model)
	}
	if cfg.Embeddings.Dimension != 3072 {
		t.Errorf("expected dimension 3072, got %d", cfg.Embeddings.Dimension)
	}
}

func TestEmbeddingsStep_ValidateURL(t *testing.T) {
	cfg := config.Starter()
	s := NewEmbeddingsStep()
	s.Init(cfg)

	s.urlInput.SetValue("not-a-url")
	if err := s.Validate(); err == nil {
		t.Error("expected error for URL without scheme")
	}

	s.urlInput.SetValue("https://api.openai.com/v1")
	if err := s.Validate(); err != nil {
		t.Errorf("expected valid URL, got %v", err)
	}
}

func TestServicesStep_Validate(t *testing.T) {
	tests := []struct {
		name    string
		field   int
		value   string
		wantErr bool
	}{
		{"valid defaults", -1, "", false},
		{"empty qdrant host", fieldQdrantHost, "", true},
		{"bad qdrant port", fieldQdrantPort, "no", true},
		{"port out of range", fieldQdrantPort, "70000", true},
		{"redis without port", fieldRedisAddr, "localhost", true},
		{"empty bucket", fieldBlobBucket, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Starter()
			s := NewServicesStep()
			s.Init(cfg)

			if tt.field >= 0 {
				s.inputs[tt.field].SetValue(tt.value)
			}

			err := s.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestServicesStep_Apply(t *testing.T) {
	cfg := config.Starter()
	s := NewServicesStep()
	s.Init(cfg)

	s.inputs[fieldQdrantHost].SetValue("qdrant.internal")
	s.inputs[fieldQdrantPort].SetValue("7334")
	s.inputs[fieldRedisAddr].SetValue("redis.internal:6380")
	s.inputs[fieldBlobEndpoint].SetValue("minio.internal:9000")
	s.inputs[fieldBlobBucket].SetValue("reviews")

	if err := s.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Vector.Host != "qdrant.internal" || cfg.Vector.Port != 7334 {
		t.Errorf("unexpected vector config: %s:%d", cfg.Vector.Host, cfg.Vector.Port)
	}
	if cfg.Bus.RedisAddr != "redis.internal:6380" {
		t.Errorf("unexpected redis addr: %q", cfg.Bus.RedisAddr)
	}
	if cfg.Storage.Blob.Bucket != "reviews" {
		t.Errorf("unexpected bucket: %q", cfg.Storage.Blob.Bucket)
	}
}

func TestHTTPPortStep_Validate(t *testing.T) {
	cfg := config.Starter()
	s := NewHTTPPortStep()
	s.SetPortChecker(func(int) bool { return false })
	s.Init(cfg)

	s.portInput.SetValue("not-a-port")
	if err := s.Validate(); err == nil {
		t.Error("expected error for non-numeric port")
	}

	s.portInput.SetValue("0")
	if err := s.Validate(); err == nil {
		t.Error("expected error for port 0")
	}

	s.portInput.SetValue("7810")
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPPortStep_WarnsOnBusyPort(t *testing.T) {
	cfg := config.Starter()
	s := NewHTTPPortStep()
	s.SetPortChecker(func(port int) bool { return port == cfg.Server.HTTPPort })
	s.Init(cfg)

	if !strings.Contains(s.View(), "in use") {
		t.Error("expected a port-in-use warning in the view")
	}
}

func TestHTTPPortStep_Apply(t *testing.T) {
	cfg := config.Starter()
	s := NewHTTPPortStep()
	s.SetPortChecker(func(int) bool { return false })
	s.Init(cfg)

	s.portInput.SetValue("9100")
	if err := s.Apply(cfg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Server.HTTPPort != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.HTTPPort)
	}
}

func TestConfirmStep_ViewSummarizesConfig(t *testing.T) {
	cfg := config.Starter()
	cfg.LLM.Provider = "openai"
	cfg.Vector.Host = "qdrant.internal"

	s := NewConfirmStep()
	s.Init(cfg)

	view := s.View()
	if !strings.Contains(view, "openai") {
		t.Error("expected summary to show the provider")
	}
	if !strings.Contains(view, "qdrant.internal:"+strconv.Itoa(cfg.Vector.Port)) {
		t.Error("expected summary to show the Qdrant address")
	}
}

func TestConfirmStep_EnterAdvances(t *testing.T) {
	s := NewConfirmStep()
	s.Init(config.Starter())

	_, result := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if result != StepNext {
		t.Errorf("expected StepNext, got %v", result)
	}
}
