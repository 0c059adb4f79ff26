package initialize

import (
	"os"
	"testing"
)

func TestResolveModelDefaults(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "gpt-4o-mini"},
		{"gemini", "gemini-1.5-flash"},
		{"unknown", "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			initModel = ""
			os.Unsetenv("ARCHLENS_LLM_MODEL")

			got := resolveModel(tt.provider)
			if got != tt.want {
				t.Errorf("resolveModel(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}

func TestResolveModelFlagPriority(t *testing.T) {
	initModel = "gpt-4o"
	defer func() { initModel = "" }()

	t.Setenv("ARCHLENS_LLM_MODEL", "gpt-4.1-mini")

	if got := resolveModel("openai"); got != "gpt-4o" {
		t.Errorf("resolveModel() = %q, want flag value %q", got, "gpt-4o")
	}
}

func TestResolveModelEnvPriority(t *testing.T) {
	initModel = ""
	t.Setenv("ARCHLENS_LLM_MODEL", "gpt-4.1-mini")

	if got := resolveModel("openai"); got != "gpt-4.1-mini" {
		t.Errorf("resolveModel() = %q, want env value %q", got, "gpt-4.1-mini")
	}
}

func TestGetEmbeddingsDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := getEmbeddingsDimension(tt.model); got != tt.want {
				t.Errorf("getEmbeddingsDimension(%q) = %d, want %d", tt.model, got, tt.want)
			}
		})
	}
}

func TestResolveAPIKeySources(t *testing.T) {
	initAPIKey = ""
	t.Setenv("OPENAI_API_KEY", "sk-test")

	key, source := resolveAPIKey("openai")
	if key != "sk-test" {
		t.Errorf("resolveAPIKey() key = %q, want %q", key, "sk-test")
	}
	if source != "OPENAI_API_KEY" {
		t.Errorf("resolveAPIKey() source = %q, want %q", source, "OPENAI_API_KEY")
	}

	initAPIKey = "sk-flag"
	defer func() { initAPIKey = "" }()

	key, source = resolveAPIKey("openai")
	if key != "sk-flag" || source != "flag" {
		t.Errorf("resolveAPIKey() = (%q, %q), want flag priority", key, source)
	}
}

func TestResolveUnattendedConfigDefaults(t *testing.T) {
	for _, env := range []string{
		"ARCHLENS_LLM_PROVIDER", "ARCHLENS_LLM_MODEL", "ARCHLENS_EMBEDDINGS_MODEL",
		"ARCHLENS_VECTOR_HOST", "ARCHLENS_VECTOR_PORT", "ARCHLENS_BUS_REDIS_ADDR",
		"ARCHLENS_STORAGE_BLOB_ENDPOINT", "ARCHLENS_STORAGE_BLOB_BUCKET",
		"ARCHLENS_SERVER_HTTP_PORT",
	} {
		os.Unsetenv(env)
	}

	resolved := resolveUnattendedConfig()

	if resolved.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", resolved.Provider, "openai")
	}
	if resolved.QdrantHost != "127.0.0.1" {
		t.Errorf("QdrantHost = %q, want %q", resolved.QdrantHost, "127.0.0.1")
	}
	if resolved.QdrantPort != 6334 {
		t.Errorf("QdrantPort = %d, want 6334", resolved.QdrantPort)
	}
	if resolved.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("RedisAddr = %q, want %q", resolved.RedisAddr, "127.0.0.1:6379")
	}
	if resolved.HTTPPort != 7810 {
		t.Errorf("HTTPPort = %d, want 7810", resolved.HTTPPort)
	}
	if resolved.EmbeddingsModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingsModel = %q, want text-embedding-3-small", resolved.EmbeddingsModel)
	}
	if resolved.EmbeddingsDimension != 1536 {
		t.Errorf("EmbeddingsDimension = %d, want 1536", resolved.EmbeddingsDimension)
	}
}
