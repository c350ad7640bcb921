// Package config provides the configuration schema, loader, and provider
// registry for the finanalyst MCP server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Analyst   AnalystConfig   `yaml:"analyst"`
	Executor  ExecutorConfig  `yaml:"executor"`
}

// ServerConfig holds logging settings and the optional HTTP listener.
// The MCP channel itself is always stdin/stdout.
type ServerConfig struct {
	// LogLevel controls verbosity. Logs always go to stderr.
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr enables an HTTP listener serving /metrics, /healthz,
	// /readyz and /tools (e.g. ":8090"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`

	// MCPPath additionally serves the tools over MCP Streamable HTTP at this
	// path on ListenAddr (e.g. "/mcp"). Empty disables it.
	MCPPath string `yaml:"mcp_path"`

	// TLS configures TLS for the HTTP listener. When nil, it runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig selects the LLM backends used for code generation.
type ProvidersConfig struct {
	// LLM is the primary provider.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary fails or its circuit
	// breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// ProviderEntry is the configuration block shared by all LLM providers.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// When empty, the provider reads its usual environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// AnalystConfig tunes the code-generation crew.
type AnalystConfig struct {
	// Temperature is the sampling temperature for both LLM calls.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps each completion.
	MaxTokens int `yaml:"max_tokens"`

	// RequestsPerMinute limits LLM requests. 0 means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Companies adds company name to ticker mappings for symbol resolution.
	Companies map[string]string `yaml:"companies"`
}

// ExecutorConfig controls how saved code is run.
type ExecutorConfig struct {
	// Interpreter is the executable used to run scripts.
	Interpreter string `yaml:"interpreter"`

	// WorkDir is the parent directory for per-run scratch directories.
	WorkDir string `yaml:"work_dir"`

	// OutputDir is the working directory scripts run in. Plots and other
	// files they write there are kept. Empty means the process working
	// directory.
	OutputDir string `yaml:"output_dir"`

	// Timeout bounds a single run. Hot-reloadable.
	Timeout time.Duration `yaml:"timeout"`

	// MaxOutputBytes caps captured stdout and stderr each. Hot-reloadable.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// Env holds extra environment variables for the interpreter.
	Env map[string]string `yaml:"env"`
}
