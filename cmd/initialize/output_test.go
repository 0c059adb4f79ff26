package initialize

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleResolved() *UnattendedConfig {
	return &UnattendedConfig{
		Provider:            "openai",
		Model:               "gpt-4o-mini",
		APIKey:              "sk-secret",
		APIKeySource:        "OPENAI_API_KEY",
		APIKeyEnv:           "OPENAI_API_KEY",
		EmbeddingsModel:     "text-embedding-3-small",
		EmbeddingsDimension: 1536,
		QdrantHost:          "127.0.0.1",
		QdrantPort:          6334,
		RedisAddr:           "127.0.0.1:6379",
		BlobEndpoint:        "127.0.0.1:9000",
		BlobBucket:          "archlens-projects",
		HTTPPort:            7810,
	}
}

func TestFormatTextOutputMasksAPIKey(t *testing.T) {
	output := formatTextOutput(sampleResolved())

	if strings.Contains(output, "sk-secret") {
		t.Error("text output leaks the API key")
	}
	if !strings.Contains(output, "********") {
		t.Error("text output missing masked key marker")
	}
	if !strings.Contains(output, "from OPENAI_API_KEY") {
		t.Error("text output missing key source")
	}
	if !strings.Contains(output, "archlens serve") {
		t.Error("text output missing next-step hint")
	}
}

func TestFormatJSONOutput(t *testing.T) {
	output, err := formatJSONOutput(sampleResolved())
	if err != nil {
		t.Fatalf("formatJSONOutput() error: %v", err)
	}

	if strings.Contains(output, "sk-secret") {
		t.Error("JSON output leaks the API key")
	}

	var result InitResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if result.Status != "success" {
		t.Errorf("Status = %q, want %q", result.Status, "success")
	}
	if result.Config.Analysis.APIKey != "********" {
		t.Errorf("Analysis.APIKey = %q, want masked", result.Config.Analysis.APIKey)
	}
	if result.Config.Server.HTTPPort != 7810 {
		t.Errorf("Server.HTTPPort = %d, want 7810", result.Config.Server.HTTPPort)
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey(""); got != "" {
		t.Errorf("maskAPIKey(\"\") = %q, want empty", got)
	}
	if got := maskAPIKey("sk-anything"); got != "********" {
		t.Errorf("maskAPIKey() = %q, want masked", got)
	}
}
