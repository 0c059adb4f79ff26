package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/archlens/archlens/internal/config"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered.
	ErrProviderNotFound = errors.New("chat provider not found")

	// ErrProviderExists is returned when trying to register a duplicate provider.
	ErrProviderExists = errors.New("chat provider already registered")

	// ErrNoAvailableProvider is returned when no provider is available.
	ErrNoAvailableProvider = errors.New("no available chat provider")
)

// Registry manages chat provider registration and lookup.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]ChatProvider
	defaultName string
}

// NewRegistry creates a new chat provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ChatProvider),
	}
}

// Register adds a provider. The first available registration becomes the
// default.
func (r *Registry) Register(p ChatProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return ErrProviderExists
	}

	r.providers[name] = p

	if r.defaultName == "" && p.Available() {
		r.defaultName = name
	}

	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (ChatProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[name]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return p, nil
}

// Default returns the default provider, falling back to the first
// available one when no default was selected.
func (r *Registry) Default() (ChatProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		for _, p := range r.providers {
			if p.Available() {
				return p, nil
			}
		}
		return nil, ErrNoAvailableProvider
	}

	return r.providers[r.defaultName], nil
}

// SetDefault sets the default provider by name.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return ErrProviderNotFound
	}

	r.defaultName = name
	return nil
}

// Available returns all available providers.
func (r *Registry) Available() []ChatProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []ChatProvider
	for _, p := range r.providers {
		if p.Available() {
			available = append(available, p)
		}
	}
	return available
}

// FromConfig builds a registry holding both providers. The configured
// provider receives the resolved API key and model and is selected as
// default when available; the other provider can still pick up its own
// environment key as a fallback.
func FromConfig(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()

	var openaiKey, geminiKey string
	openaiOpts := []OpenAIOption{WithOpenAILogger(logger)}
	geminiOpts := []GeminiOption{WithGeminiLogger(logger)}

	switch cfg.Provider {
	case ProviderGemini:
		geminiKey = cfg.ResolveAPIKey()
		geminiOpts = append(geminiOpts, WithGeminiModel(cfg.Model))
	default:
		openaiKey = cfg.ResolveAPIKey()
		openaiOpts = append(openaiOpts, WithOpenAIModel(cfg.Model))
	}

	if err := reg.Register(NewOpenAIProvider(openaiKey, openaiOpts...)); err != nil {
		return nil, err
	}

	gemini, err := NewGeminiProvider(ctx, geminiKey, geminiOpts...)
	if err != nil {
		logger.Warn("gemini provider unavailable", "error", err)
	} else if err := reg.Register(gemini); err != nil {
		return nil, err
	}

	if p, err := reg.Get(cfg.Provider); err == nil && p.Available() {
		if err := reg.SetDefault(cfg.Provider); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
