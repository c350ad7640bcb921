package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/finanalyst/internal/config"
	"github.com/MrWong99/finanalyst/internal/observe"
	"github.com/MrWong99/finanalyst/internal/resilience"
	"github.com/MrWong99/finanalyst/pkg/provider/llm"
	"github.com/MrWong99/finanalyst/pkg/provider/llm/anyllm"
	"github.com/MrWong99/finanalyst/pkg/provider/llm/openai"
)

// registerBuiltinProviders wires all built-in LLM factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// These all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// openai-native uses the official SDK and enforces JSON mode server-side.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		key := entry.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if s := optString(entry.Options, "timeout"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("openai-native: options.timeout: %w", err)
			}
			opts = append(opts, openai.WithTimeout(d))
		}
		if n, ok := optInt(entry.Options, "max_retries"); ok {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(key, entry.Model, opts...)
	})
}

// buildLLM creates the primary provider and its fallbacks behind per-backend
// circuit breakers. It returns nil when no primary is configured.
func buildLLM(cfg config.ProvidersConfig, reg *config.Registry, metrics *observe.Metrics) (*resilience.LLMFallback, error) {
	if cfg.LLM.Name == "" {
		return nil, nil
	}

	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}

	primary, err := reg.CreateLLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Name, "model", cfg.LLM.Model)
	fb := resilience.NewLLMFallback(primary, cfg.LLM.Name, fbCfg)

	seen := map[string]int{cfg.LLM.Name: 1}
	for _, entry := range cfg.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("fallback provider not registered; skipping", "name", entry.Name)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		// Breaker names must be unique; the same backend may appear twice
		// with different models.
		name := entry.Name
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s#%d", entry.Name, n+1)
		}
		seen[entry.Name]++
		fb.AddFallback(name, p)
		slog.Info("provider created", "kind", "llm-fallback", "name", name, "model", entry.Model)
	}
	return fb, nil
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer option. YAML decodes whole numbers as int.
func optInt(opts map[string]any, key string) (int, bool) {
	n, ok := opts[key].(int)
	return n, ok
}
