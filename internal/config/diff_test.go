package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/finanalyst/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(config.Default(), config.Default())
	if d.LogLevelChanged || d.ExecutorLimitsChanged || len(d.RestartRequired) != 0 {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old, cur := config.Default(), config.Default()
	cur.Server.LogLevel = config.LogDebug

	d := config.Diff(old, cur)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("got %+v, want log level change to debug", d)
	}
}

func TestDiff_ExecutorLimits(t *testing.T) {
	t.Parallel()
	old, cur := config.Default(), config.Default()
	cur.Executor.Timeout = 5 * time.Second
	cur.Executor.MaxOutputBytes = 1024

	d := config.Diff(old, cur)
	if !d.ExecutorLimitsChanged {
		t.Fatal("ExecutorLimitsChanged = false, want true")
	}
	if d.NewTimeout != 5*time.Second || d.NewMaxOutputBytes != 1024 {
		t.Errorf("new limits = %s, %d", d.NewTimeout, d.NewMaxOutputBytes)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("limits are hot-reloadable, got RestartRequired=%v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *config.Config)
		section string
	}{
		{"interpreter", func(c *config.Config) { c.Executor.Interpreter = "python3.12" }, "executor"},
		{"output dir", func(c *config.Config) { c.Executor.OutputDir = "/srv/plots" }, "executor"},
		{"env", func(c *config.Config) { c.Executor.Env = map[string]string{"A": "1"} }, "executor"},
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9000" }, "server"},
		{"tls", func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c", KeyFile: "k"} }, "server"},
		{"model", func(c *config.Config) { c.Providers.LLM = config.ProviderEntry{Name: "openai", Model: "gpt-4o"} }, "providers"},
		{"fallback added", func(c *config.Config) {
			c.Providers.Fallbacks = []config.ProviderEntry{{Name: "ollama", Model: "llama3.1"}}
		}, "providers"},
		{"rate limit", func(c *config.Config) { c.Analyst.RequestsPerMinute = 10 }, "analyst"},
		{"companies", func(c *config.Config) { c.Analyst.Companies = map[string]string{"acme": "ACME"} }, "analyst"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, cur := config.Default(), config.Default()
			tc.mutate(cur)
			d := config.Diff(old, cur)
			if !slices.Contains(d.RestartRequired, tc.section) {
				t.Errorf("RestartRequired = %v, want it to contain %q", d.RestartRequired, tc.section)
			}
			if d.LogLevelChanged || d.ExecutorLimitsChanged {
				t.Errorf("unexpected hot-reload change: %+v", d)
			}
		})
	}
}
