package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/finanalyst/pkg/provider/llm"
)

// LLMFallback is the code-generation backend the analyst talks to. It tries
// the primary LLM first and walks the configured fallbacks, each behind its
// own circuit breaker, until one answers.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Providers returns the registered backend names, primary first.
func (f *LLMFallback) Providers() []string {
	return f.group.Names()
}

// Complete returns the first successful completion. The response's Provider
// field names the backend that produced it.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, name, err := executeNamed(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err == nil && resp == nil {
			return nil, errors.New("nil response")
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	out := *resp
	out.Provider = name
	return &out, nil
}

// Capabilities reports the primary's model.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return llm.ModelCapabilities{}
}

// States returns the current circuit breaker state of every backend.
func (f *LLMFallback) States() map[string]State {
	out := make(map[string]State, len(f.group.entries))
	for _, e := range f.group.entries {
		out[e.name] = e.breaker.State()
	}
	return out
}
