package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/finanalyst/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLLM] for a provider
// name nobody registered.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMFactory builds a code-generation backend from its config entry.
type LLMFactory func(ProviderEntry) (llm.Provider, error)

// Registry maps provider names from the config file to LLM factories. It is
// safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]LLMFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{llm: make(map[string]LLMFactory)}
}

// RegisterLLM registers factory under name, replacing any earlier one.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// LLMNames returns the registered names, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.llm))
}

// CreateLLM builds the provider registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrProviderNotRegistered, entry.Name, r.LLMNames())
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create %q: %w", entry.Name, err)
	}
	return p, nil
}
