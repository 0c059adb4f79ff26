package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validLLMProviders lists recognized chat completion providers.
var validLLMProviders = map[string]bool{
	"openai": true,
	"gemini": true,
}

// validLogLevels lists recognized log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for invalid values.
// Returns ValidationErrors listing every failure found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, ValidationError{"log_level", fmt.Sprintf("unrecognized level %q", c.LogLevel)})
	}
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		errs = append(errs, ValidationError{"server.http_port", fmt.Sprintf("port %d out of range", c.Server.HTTPPort)})
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{"server.shutdown_timeout", "must not be negative"})
	}
	if !validLLMProviders[strings.ToLower(c.LLM.Provider)] {
		errs = append(errs, ValidationError{"llm.provider", fmt.Sprintf("unrecognized provider %q", c.LLM.Provider)})
	}
	if c.LLM.MaxParallelCalls < 1 {
		errs = append(errs, ValidationError{"llm.max_parallel_calls", "must be at least 1"})
	}
	if c.Embeddings.Dimension < 1 {
		errs = append(errs, ValidationError{"embeddings.dimension", "must be at least 1"})
	}
	if c.Embeddings.Concurrency < 1 {
		errs = append(errs, ValidationError{"embeddings.concurrency", "must be at least 1"})
	}
	if c.Embeddings.TokensPerMinute < 1 {
		errs = append(errs, ValidationError{"embeddings.tokens_per_minute", "must be at least 1"})
	}
	if c.Embeddings.BatchSize < 1 {
		errs = append(errs, ValidationError{"embeddings.batch_size", "must be at least 1"})
	}
	if c.Analysis.DirectSendThresholdBytes < 0 {
		errs = append(errs, ValidationError{"analysis.direct_send_threshold_bytes", "must not be negative"})
	}
	if c.Analysis.RagChunkThresholdBytes < c.Analysis.DirectSendThresholdBytes {
		errs = append(errs, ValidationError{"analysis.rag_chunk_threshold_bytes", "must be >= direct_send_threshold_bytes"})
	}
	if c.Analysis.MaxChunkTokens < 1 {
		errs = append(errs, ValidationError{"analysis.max_chunk_tokens", "must be at least 1"})
	}
	if c.Analysis.MinChunkTokens < 1 || c.Analysis.MinChunkTokens > c.Analysis.MaxChunkTokens {
		errs = append(errs, ValidationError{"analysis.min_chunk_tokens", "must be in [1, max_chunk_tokens]"})
	}
	if c.Analysis.OverlapTokens < 0 || c.Analysis.OverlapTokens >= c.Analysis.MaxChunkTokens {
		errs = append(errs, ValidationError{"analysis.overlap_tokens", "must be in [0, max_chunk_tokens)"})
	}
	if c.Analysis.RiskThreshold < 0 || c.Analysis.RiskThreshold > 1 {
		errs = append(errs, ValidationError{"analysis.risk_threshold", "must be in [0, 1]"})
	}
	if c.Analysis.MaxRetryAttempts < 0 {
		errs = append(errs, ValidationError{"analysis.max_retry_attempts", "must not be negative"})
	}
	if c.Watchdog.CheckIntervalSeconds < 1 {
		errs = append(errs, ValidationError{"watchdog.check_interval_seconds", "must be at least 1"})
	}
	if c.Watchdog.MaxHeartbeatIntervalSeconds < 1 {
		errs = append(errs, ValidationError{"watchdog.max_heartbeat_interval_seconds", "must be at least 1"})
	}
	if c.Watchdog.MaxProjectDurationSeconds < 1 {
		errs = append(errs, ValidationError{"watchdog.max_project_duration_seconds", "must be at least 1"})
	}
	if c.Bus.Stream == "" {
		errs = append(errs, ValidationError{"bus.stream", "must not be empty"})
	}
	if c.Bus.Group == "" {
		errs = append(errs, ValidationError{"bus.group", "must not be empty"})
	}
	if c.Bus.ConcurrentMessageLimit < 1 {
		errs = append(errs, ValidationError{"bus.concurrent_message_limit", "must be at least 1"})
	}
	if c.Vector.CollectionPrefix == "" {
		errs = append(errs, ValidationError{"vector.collection_prefix", "must not be empty"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
