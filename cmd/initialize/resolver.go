package initialize

import (
	"os"
	"strconv"

	"github.com/archlens/archlens/internal/config"
)

// UnattendedConfig holds the resolved configuration values for unattended mode.
type UnattendedConfig struct {
	// Chat provider configuration
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnv    string
	APIKeySource string // "flag" or the provider env var name

	// Embeddings configuration
	EmbeddingsModel     string
	EmbeddingsDimension int

	// Backing service configuration
	QdrantHost   string
	QdrantPort   int
	RedisAddr    string
	BlobEndpoint string
	BlobBucket   string

	// Server configuration
	HTTPPort int
}

// Default chat models by provider.
var defaultModels = map[string]string{
	"openai": "gpt-4o-mini",
	"gemini": "gemini-1.5-flash",
}

// Embeddings dimensions by model.
var embeddingsDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// Provider environment variable names for API keys.
var providerEnvVars = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// resolveUnattendedConfig resolves all configuration values for unattended
// mode. Values are resolved in priority order: flags > ARCHLENS_* env >
// provider env > defaults.
func resolveUnattendedConfig() *UnattendedConfig {
	cfg := &UnattendedConfig{}

	cfg.Provider = resolveProvider()
	cfg.Model = resolveModel(cfg.Provider)
	cfg.APIKey, cfg.APIKeySource = resolveAPIKey(cfg.Provider)
	cfg.APIKeyEnv = providerEnvVars[cfg.Provider]

	cfg.EmbeddingsModel = resolveEmbeddingsModel()
	cfg.EmbeddingsDimension = getEmbeddingsDimension(cfg.EmbeddingsModel)

	cfg.QdrantHost = resolveString(initQdrantHost, "ARCHLENS_VECTOR_HOST", config.DefaultVectorHost)
	cfg.QdrantPort = resolveInt(initQdrantPort, "ARCHLENS_VECTOR_PORT", config.DefaultVectorPort)
	cfg.RedisAddr = resolveString(initRedisAddr, "ARCHLENS_BUS_REDIS_ADDR", config.DefaultRedisAddr)
	cfg.BlobEndpoint = resolveString(initBlobEndpoint, "ARCHLENS_STORAGE_BLOB_ENDPOINT", config.DefaultBlobEndpoint)
	cfg.BlobBucket = resolveString(initBlobBucket, "ARCHLENS_STORAGE_BLOB_BUCKET", config.DefaultBlobBucket)

	cfg.HTTPPort = resolveInt(initHTTPPort, "ARCHLENS_SERVER_HTTP_PORT", config.DefaultHTTPPort)

	return cfg
}

// resolveProvider resolves the chat provider.
func resolveProvider() string {
	return resolveString(initProvider, "ARCHLENS_LLM_PROVIDER", config.DefaultLLMProvider)
}

// resolveModel resolves the chat model based on provider.
func resolveModel(provider string) string {
	if initModel != "" {
		return initModel
	}
	if v := os.Getenv("ARCHLENS_LLM_MODEL"); v != "" {
		return v
	}
	if model, ok := defaultModels[provider]; ok {
		return model
	}
	return config.DefaultLLMModel
}

// resolveAPIKey resolves the chat provider API key and its source.
func resolveAPIKey(provider string) (string, string) {
	// Priority 1: CLI flag
	if initAPIKey != "" {
		return initAPIKey, "flag"
	}

	// Priority 2: Provider-native environment variable
	if envVar, ok := providerEnvVars[provider]; ok {
		if v := os.Getenv(envVar); v != "" {
			return v, envVar
		}
	}

	return "", ""
}

// resolveEmbeddingsModel resolves the embeddings model.
func resolveEmbeddingsModel() string {
	return resolveString(initEmbeddingsModel, "ARCHLENS_EMBEDDINGS_MODEL", config.DefaultEmbeddingsModel)
}

// getEmbeddingsDimension returns the dimension for an embeddings model.
func getEmbeddingsDimension(model string) int {
	if dims, ok := embeddingsDimensions[model]; ok {
		return dims
	}
	// Default dimension for unknown models
	return 1536
}

// resolveString resolves a string value: flag > env var > default.
func resolveString(flagValue, envVar, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// resolveInt resolves an integer value: flag > env var > default.
func resolveInt(flagValue int, envVar string, fallback int) int {
	if flagValue != 0 {
		return flagValue
	}
	if v := getEnvInt(envVar); v != 0 {
		return v
	}
	return fallback
}

// getEnvInt reads an environment variable as an integer.
func getEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return i
}
