package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/finanalyst/internal/config"
	"github.com/MrWong99/finanalyst/pkg/provider/llm"
	"github.com/MrWong99/finanalyst/pkg/provider/llm/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  log_level: debug
  listen_addr: ":8090"
  mcp_path: /mcp

providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  fallbacks:
    - name: ollama
      model: llama3.1
      base_url: http://localhost:11434

analyst:
  temperature: 0.1
  max_tokens: 2048
  requests_per_minute: 30
  companies:
    rheinmetall: RHM.DE

executor:
  interpreter: /usr/bin/python3
  work_dir: /var/tmp/finanalyst
  output_dir: /srv/finanalyst/plots
  timeout: 90s
  max_output_bytes: 65536
  env:
    MPLBACKEND: Agg
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.ListenAddr != ":8090" || cfg.Server.MCPPath != "/mcp" {
		t.Errorf("server: got %+v", cfg.Server)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("providers.llm: got %+v", cfg.Providers.LLM)
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].BaseURL != "http://localhost:11434" {
		t.Errorf("providers.fallbacks: got %+v", cfg.Providers.Fallbacks)
	}
	if cfg.Analyst.Temperature != 0.1 || cfg.Analyst.MaxTokens != 2048 || cfg.Analyst.RequestsPerMinute != 30 {
		t.Errorf("analyst: got %+v", cfg.Analyst)
	}
	if cfg.Analyst.Companies["rheinmetall"] != "RHM.DE" {
		t.Errorf("analyst.companies: got %v", cfg.Analyst.Companies)
	}
	if cfg.Executor.OutputDir != "/srv/finanalyst/plots" {
		t.Errorf("executor.output_dir: got %q", cfg.Executor.OutputDir)
	}
	if cfg.Executor.Timeout != 90*time.Second {
		t.Errorf("executor.timeout: got %s, want 90s", cfg.Executor.Timeout)
	}
	if cfg.Executor.MaxOutputBytes != 65536 || cfg.Executor.Env["MPLBACKEND"] != "Agg" {
		t.Errorf("executor: got %+v", cfg.Executor)
	}
}

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := config.Default()
	if cfg.Server.LogLevel != want.Server.LogLevel {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, want.Server.LogLevel)
	}
	if cfg.Analyst.Temperature != config.DefaultTemperature || cfg.Analyst.MaxTokens != config.DefaultMaxTokens {
		t.Errorf("analyst defaults: got %+v", cfg.Analyst)
	}
	if cfg.Executor.Interpreter != config.DefaultInterpreter ||
		cfg.Executor.Timeout != config.DefaultTimeout ||
		cfg.Executor.MaxOutputBytes != config.DefaultMaxOutputBytes {
		t.Errorf("executor defaults: got %+v", cfg.Executor)
	}
}

func TestLoadFromReader_PartialKeepsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("executor:\n  timeout: 5s\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Executor.Timeout != 5*time.Second {
		t.Errorf("timeout: got %s, want 5s", cfg.Executor.Timeout)
	}
	if cfg.Executor.Interpreter != config.DefaultInterpreter {
		t.Errorf("interpreter: got %q, want default", cfg.Executor.Interpreter)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  colour: blue\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("executor:\n  timeout: soon\n"))
	if err == nil {
		t.Fatal("expected error for malformed duration, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/finanalyst.yaml")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "config: open") {
		t.Errorf("error should be wrapped with config: open, got %v", err)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_CreateLLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "print(1)"}}

	var got config.ProviderEntry
	reg.RegisterLLM("fake", func(e config.ProviderEntry) (llm.Provider, error) {
		got = e
		return want, nil
	})

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "fake", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p != want {
		t.Error("CreateLLM returned a different provider")
	}
	if got.Model != "m1" {
		t.Errorf("factory received %+v", got)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil || resp.Content != "print(1)" {
		t.Errorf("Complete = %v, %v", resp, err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestRegistry_LLMNamesSorted(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, name := range []string{"openai", "anthropic", "ollama"} {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return nil, nil })
	}
	if got := strings.Join(reg.LLMNames(), ","); got != "anthropic,ollama,openai" {
		t.Errorf("LLMNames() = %s", got)
	}
}
