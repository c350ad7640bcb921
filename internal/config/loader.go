package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Default] and [LoadFromReader] to absent fields.
const (
	DefaultTemperature    = 0.2
	DefaultMaxTokens      = 4096
	DefaultInterpreter    = "python3"
	DefaultTimeout        = 60 * time.Second
	DefaultMaxOutputBytes = 1 << 20
)

// ValidProviderNames lists the LLM provider names the binary registers.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{
	"openai", "openai-native", "anthropic", "ollama", "gemini",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Analyst: AnalystConfig{
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Executor: ExecutorConfig{
			Interpreter:    DefaultInterpreter,
			Timeout:        DefaultTimeout,
			MaxOutputBytes: DefaultMaxOutputBytes,
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if p := cfg.Server.MCPPath; p != "" {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("server.mcp_path %q must start with /", p))
		}
		if cfg.Server.ListenAddr == "" {
			errs = append(errs, errors.New("server.mcp_path requires server.listen_addr"))
		}
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		if len(cfg.Providers.Fallbacks) > 0 {
			errs = append(errs, errors.New("providers.fallbacks requires providers.llm"))
		}
		slog.Warn("no LLM provider configured; analyze_stock will report an error")
	} else {
		errs = append(errs, validateEntry("providers.llm", cfg.Providers.LLM)...)
	}
	for i, fb := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		errs = append(errs, validateEntry(prefix, fb)...)
	}

	// Analyst
	if t := cfg.Analyst.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("analyst.temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.Analyst.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("analyst.max_tokens %d must not be negative", cfg.Analyst.MaxTokens))
	}
	if cfg.Analyst.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("analyst.requests_per_minute %d must not be negative", cfg.Analyst.RequestsPerMinute))
	}
	for name, ticker := range cfg.Analyst.Companies {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(ticker) == "" {
			errs = append(errs, fmt.Errorf("analyst.companies entry %q: %q must have a non-empty name and ticker", name, ticker))
		}
	}

	// Executor
	if cfg.Executor.Timeout < 0 {
		errs = append(errs, fmt.Errorf("executor.timeout %s must not be negative", cfg.Executor.Timeout))
	}
	if cfg.Executor.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("executor.max_output_bytes %d must not be negative", cfg.Executor.MaxOutputBytes))
	}
	for k := range cfg.Executor.Env {
		if k == "" || strings.Contains(k, "=") {
			errs = append(errs, fmt.Errorf("executor.env key %q is invalid", k))
		}
	}

	return errors.Join(errs...)
}

// validateEntry checks a single provider entry. Unknown names only warn so
// third-party registrations keep working.
func validateEntry(prefix string, e ProviderEntry) []error {
	var errs []error
	if e.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", prefix))
	}
	if !slices.Contains(ValidProviderNames, e.Name) {
		slog.Warn("unknown provider name; may be a typo or third-party provider",
			"field", prefix,
			"name", e.Name,
			"known", ValidProviderNames,
		)
	}
	return errs
}
