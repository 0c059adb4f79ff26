// Package llm provides chat completion providers for the analysis agents.
//
// Providers share the ChatProvider interface so agents stay independent
// of the backing API. Completions run through the resilience layer with
// the chat timeout class and exponential retry on transient failures.
package llm

import "context"

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ChatProvider produces a completion for a single prompt. The label
// identifies the caller (agent or pipeline stage) in logs and retry
// diagnostics.
type ChatProvider interface {
	// Name returns the provider's unique identifier.
	Name() string

	// Available returns true if the provider is configured and ready.
	Available() bool

	// Complete sends the prompt and returns the model's text response.
	Complete(ctx context.Context, prompt, label string) (string, error)
}
