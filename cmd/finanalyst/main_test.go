package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/finanalyst/internal/config"
	"github.com/MrWong99/finanalyst/internal/executor"
	"github.com/MrWong99/finanalyst/internal/health"
	"github.com/MrWong99/finanalyst/internal/mcp"
	"github.com/MrWong99/finanalyst/internal/mcp/mcpserver"
	"github.com/MrWong99/finanalyst/internal/observe"
	"github.com/MrWong99/finanalyst/pkg/provider/llm"
	llmmock "github.com/MrWong99/finanalyst/pkg/provider/llm/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "f.yaml")
	if err := os.WriteFile(path, []byte("server:\n  log_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path || cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("loadConfig = %q, %q", got, cfg.Server.LogLevel)
	}
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	t.Parallel()
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestApplyDiff(t *testing.T) {
	t.Parallel()
	var level slog.LevelVar
	runner := executor.New(executor.Config{Timeout: time.Minute, MaxOutputBytes: 100})

	applyDiff(config.ConfigDiff{
		LogLevelChanged:       true,
		NewLogLevel:           config.LogDebug,
		ExecutorLimitsChanged: true,
		NewTimeout:            5 * time.Second,
		NewMaxOutputBytes:     42,
	}, &level, runner)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %s, want DEBUG", level.Level())
	}
	eff := runner.Config()
	if eff.Timeout != 5*time.Second || eff.MaxOutputBytes != 42 {
		t.Errorf("limits = %s, %d", eff.Timeout, eff.MaxOutputBytes)
	}
}

func TestBuildLLM(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterLLM("fake", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, errors.New("bad key")
	})

	t.Run("none configured", func(t *testing.T) {
		fb, err := buildLLM(config.ProvidersConfig{}, reg, testMetrics(t))
		if err != nil || fb != nil {
			t.Errorf("buildLLM = %v, %v; want nil, nil", fb, err)
		}
	})

	t.Run("primary with fallbacks", func(t *testing.T) {
		fb, err := buildLLM(config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "fake", Model: "a"},
			Fallbacks: []config.ProviderEntry{
				{Name: "fake", Model: "b"},
				{Name: "unregistered", Model: "c"},
			},
		}, reg, testMetrics(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := fb.Providers()
		if len(got) != 2 || got[0] != "fake" || got[1] != "fake#2" {
			t.Errorf("Providers() = %v, want [fake fake#2]", got)
		}
	})

	t.Run("factory error", func(t *testing.T) {
		_, err := buildLLM(config.ProvidersConfig{LLM: config.ProviderEntry{Name: "broken", Model: "x"}}, reg, testMetrics(t))
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	names := reg.LLMNames()
	for _, want := range config.ValidProviderNames {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("provider %q not registered", want)
		}
	}
}

func TestNewHTTPServer_Routes(t *testing.T) {
	t.Parallel()
	m := testMetrics(t)
	srv := mcpserver.New("finanalyst", "test", mcpserver.WithMetrics(m))
	hs := newHTTPServer(config.ServerConfig{ListenAddr: ":0"}, srv, m,
		health.Interpreter(func() (string, error) { return "python3", nil }),
	)

	cases := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/tools", http.StatusOK},
		{"/mcp", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			hs.Handler.ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
			if rec.Code != tc.want {
				t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.want)
			}
			if tc.path == "/tools" {
				var stats []mcp.ToolHealth
				if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
					t.Errorf("decode /tools: %v", err)
				}
			}
		})
	}
}

func TestProviderLabel(t *testing.T) {
	t.Parallel()
	cases := map[string]config.ProviderEntry{
		"(not configured)": {},
		"ollama":           {Name: "ollama"},
		"openai / gpt-4o":  {Name: "openai", Model: "gpt-4o"},
	}
	for want, e := range cases {
		if got := providerLabel(e); got != want {
			t.Errorf("providerLabel(%+v) = %q, want %q", e, got, want)
		}
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"organization": "org-1", "timeout": 30}
	if got := optString(opts, "organization"); got != "org-1" {
		t.Errorf("organization = %q", got)
	}
	if got := optString(opts, "timeout"); got != "" {
		t.Errorf("non-string value should yield empty, got %q", got)
	}
	if got := optString(nil, "x"); got != "" {
		t.Errorf("nil map should yield empty, got %q", got)
	}
}

func TestOptInt(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"max_retries": 0, "timeout": "30s"}
	if n, ok := optInt(opts, "max_retries"); !ok || n != 0 {
		t.Errorf("optInt(max_retries) = %d, %v; want 0, true", n, ok)
	}
	if _, ok := optInt(opts, "timeout"); ok {
		t.Error("string option should not parse as int")
	}
	if _, ok := optInt(nil, "max_retries"); ok {
		t.Error("nil map should report missing")
	}
}
