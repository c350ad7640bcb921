package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ExecutorLimitsChanged bool
	NewTimeout            time.Duration
	NewMaxOutputBytes     int

	// RestartRequired lists sections that changed but are not hot-reloadable.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oe, ne := old.Executor, new.Executor
	if oe.Timeout != ne.Timeout || oe.MaxOutputBytes != ne.MaxOutputBytes {
		d.ExecutorLimitsChanged = true
		d.NewTimeout = ne.Timeout
		d.NewMaxOutputBytes = ne.MaxOutputBytes
	}
	if oe.Interpreter != ne.Interpreter || oe.WorkDir != ne.WorkDir || oe.OutputDir != ne.OutputDir || !equalMaps(oe.Env, ne.Env) {
		d.RestartRequired = append(d.RestartRequired, "executor")
	}

	osrv, nsrv := old.Server, new.Server
	if osrv.ListenAddr != nsrv.ListenAddr || osrv.MCPPath != nsrv.MCPPath || !equalTLS(osrv.TLS, nsrv.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !equalProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	oa, na := old.Analyst, new.Analyst
	if oa.Temperature != na.Temperature || oa.MaxTokens != na.MaxTokens ||
		oa.RequestsPerMinute != na.RequestsPerMinute || !equalMaps(oa.Companies, na.Companies) {
		d.RestartRequired = append(d.RestartRequired, "analyst")
	}

	return d
}

func equalMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalProviders ignores Options, which are free-form.
func equalProviders(a, b ProvidersConfig) bool {
	same := func(x, y ProviderEntry) bool {
		return x.Name == y.Name && x.Model == y.Model && x.APIKey == y.APIKey && x.BaseURL == y.BaseURL
	}
	if !same(a.LLM, b.LLM) || len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !same(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}
