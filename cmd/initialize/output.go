package initialize

import (
	"encoding/json"
	"fmt"

	"github.com/archlens/archlens/internal/config"
)

// InitResult represents the output of the init command in unattended mode.
type InitResult struct {
	Status     string        `json:"status"`
	ConfigPath string        `json:"config_path"`
	Config     *MaskedConfig `json:"config"`
}

// MaskedConfig contains configuration with the API key masked for safe
// display.
type MaskedConfig struct {
	Analysis   MaskedAnalysisConfig   `json:"analysis"`
	Embeddings MaskedEmbeddingsConfig `json:"embeddings"`
	Services   MaskedServicesConfig   `json:"services"`
	Server     MaskedServerConfig     `json:"server"`
}

// MaskedAnalysisConfig contains chat provider configuration for output.
type MaskedAnalysisConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

// MaskedEmbeddingsConfig contains embeddings configuration for output.
type MaskedEmbeddingsConfig struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// MaskedServicesConfig contains backing service configuration for output.
type MaskedServicesConfig struct {
	QdrantHost   string `json:"qdrant_host"`
	QdrantPort   int    `json:"qdrant_port"`
	RedisAddr    string `json:"redis_addr"`
	BlobEndpoint string `json:"blob_endpoint"`
	BlobBucket   string `json:"blob_bucket"`
}

// MaskedServerConfig contains server configuration for output.
type MaskedServerConfig struct {
	HTTPPort int `json:"http_port"`
}

// buildInitResult creates an InitResult from resolved config.
func buildInitResult(resolved *UnattendedConfig) *InitResult {
	return &InitResult{
		Status:     "success",
		ConfigPath: config.DefaultConfigPath(),
		Config: &MaskedConfig{
			Analysis: MaskedAnalysisConfig{
				Provider: resolved.Provider,
				Model:    resolved.Model,
				APIKey:   maskAPIKey(resolved.APIKey),
			},
			Embeddings: MaskedEmbeddingsConfig{
				Model:     resolved.EmbeddingsModel,
				Dimension: resolved.EmbeddingsDimension,
			},
			Services: MaskedServicesConfig{
				QdrantHost:   resolved.QdrantHost,
				QdrantPort:   resolved.QdrantPort,
				RedisAddr:    resolved.RedisAddr,
				BlobEndpoint: resolved.BlobEndpoint,
				BlobBucket:   resolved.BlobBucket,
			},
			Server: MaskedServerConfig{
				HTTPPort: resolved.HTTPPort,
			},
		},
	}
}

// formatTextOutput formats the initialization result as human-readable text.
func formatTextOutput(resolved *UnattendedConfig) string {
	var output string

	output += "Configuration saved successfully (unattended mode).\n"
	output += fmt.Sprintf("Config file: %s\n", config.DefaultConfigPath())
	output += "\n"

	output += "Analysis:\n"
	output += fmt.Sprintf("  Provider: %s\n", resolved.Provider)
	output += fmt.Sprintf("  Model: %s\n", resolved.Model)
	if resolved.APIKey != "" {
		output += fmt.Sprintf("  API Key: ******** (from %s)\n", resolved.APIKeySource)
	} else {
		output += "  API Key: (not set)\n"
	}
	output += "\n"

	output += "Embeddings:\n"
	output += fmt.Sprintf("  Model: %s\n", resolved.EmbeddingsModel)
	output += fmt.Sprintf("  Dimension: %d\n", resolved.EmbeddingsDimension)
	output += "\n"

	output += "Services:\n"
	output += fmt.Sprintf("  Qdrant: %s:%d\n", resolved.QdrantHost, resolved.QdrantPort)
	output += fmt.Sprintf("  Redis: %s\n", resolved.RedisAddr)
	output += fmt.Sprintf("  Blob Storage: %s (bucket %s)\n", resolved.BlobEndpoint, resolved.BlobBucket)
	output += "\n"

	output += "Server:\n"
	output += fmt.Sprintf("  HTTP Port: %d\n", resolved.HTTPPort)
	output += "\n"

	output += "To start the service, run:\n"
	output += "  archlens serve\n"

	return output
}

// formatJSONOutput formats the initialization result as JSON.
func formatJSONOutput(resolved *UnattendedConfig) (string, error) {
	result := buildInitResult(resolved)

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON output; %w", err)
	}

	return string(jsonBytes), nil
}

// maskAPIKey masks an API key for safe display.
// Returns "********" if key is non-empty, empty string otherwise.
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	return "********"
}
