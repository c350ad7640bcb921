// Command finanalyst serves the stock-analysis code tools over the Model
// Context Protocol on stdin/stdout.
//
// Stdout carries the protocol; logs and the startup summary go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/finanalyst/internal/analyst"
	"github.com/MrWong99/finanalyst/internal/codeslot"
	"github.com/MrWong99/finanalyst/internal/config"
	"github.com/MrWong99/finanalyst/internal/executor"
	"github.com/MrWong99/finanalyst/internal/health"
	"github.com/MrWong99/finanalyst/internal/mcp/mcpserver"
	"github.com/MrWong99/finanalyst/internal/mcp/tools/codetools"
	"github.com/MrWong99/finanalyst/internal/observe"
	"github.com/MrWong99/finanalyst/internal/shim"
)

// defaultConfigPath is used when -config is not given and the file exists.
const defaultConfigPath = "finanalyst.yaml"

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (default: "+defaultConfigPath+" if present)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "finanalyst: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("finanalyst starting", "version", version, "config", path, "log_level", cfg.Server.LogLevel)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "finanalyst",
		ServiceVersion: version,
		InstanceID:     instanceID(),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Code generation ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	fallback, err := buildLLM(cfg.Providers, reg, metrics)
	if err != nil {
		slog.Error("failed to build LLM providers", "err", err)
		return 1
	}
	gen := analyst.Unavailable()
	var breakers health.BreakerStates
	if fallback != nil {
		resolver := analyst.NewTickerResolver(analyst.WithCompanies(cfg.Analyst.Companies))
		crew, err := analyst.New(fallback,
			analyst.WithTemperature(cfg.Analyst.Temperature),
			analyst.WithMaxTokens(cfg.Analyst.MaxTokens),
			analyst.WithRequestsPerMinute(cfg.Analyst.RequestsPerMinute),
			analyst.WithResolver(resolver),
			analyst.WithProviderName(cfg.Providers.LLM.Name),
			analyst.WithMetrics(metrics),
		)
		if err != nil {
			slog.Error("failed to create analyst", "err", err)
			return 1
		}
		gen, breakers = crew, fallback
	}

	// ── Execution ─────────────────────────────────────────────────────────────
	runner := executor.New(executor.Config{
		Interpreter:    cfg.Executor.Interpreter,
		WorkDir:        cfg.Executor.WorkDir,
		OutputDir:      cfg.Executor.OutputDir,
		Timeout:        cfg.Executor.Timeout,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
		Env:            cfg.Executor.Env,
	})
	if p, err := runner.LookPath(); err != nil {
		slog.Warn("interpreter not found; run_code_and_show_plot will report an error", "err", err)
	} else {
		slog.Info("interpreter resolved", "path", p)
	}

	// ── Tools ─────────────────────────────────────────────────────────────────
	sh, err := shim.New(codeslot.New(), gen, runner, shim.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to create shim", "err", err)
		return 1
	}
	srv := mcpserver.New("finanalyst", version, mcpserver.WithMetrics(metrics))
	for _, t := range codetools.NewTools(sh) {
		if err := srv.Register(t); err != nil {
			slog.Error("failed to register tool", "tool", t.Definition.Name, "err", err)
			return 1
		}
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	var watcher *config.Watcher
	if path != "" {
		watcher, err = config.NewWatcher(path, func(old, new *config.Config) {
			applyDiff(config.Diff(old, new), &level, runner)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		}
	}

	printStartupSummary(cfg, srv.Tools(), runner.Config())

	// ── Serve ─────────────────────────────────────────────────────────────────
	// The session ends when the client closes stdin; that also stops the
	// HTTP listener.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
		g.Go(func() error { return reloadOnHangup(gctx, watcher) })
	}
	if cfg.Server.ListenAddr != "" {
		httpSrv := newHTTPServer(cfg.Server, srv, metrics,
			health.Interpreter(runner.LookPath),
			health.WorkDir(runner.Config().WorkDir),
			health.OutputDir(runner.Config().OutputDir),
			health.Providers(breakers),
		)
		g.Go(func() error { return serveHTTP(gctx, httpSrv, cfg.Server.TLS) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reloadOnHangup forces a config reload on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, w *config.Watcher) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if _, err := w.Reload(true); err != nil {
				slog.Warn("SIGHUP reload failed; keeping previous config", "err", err)
			}
		}
	}
}

// loadConfig loads the file named by flagPath. Without a flag it loads
// defaultConfigPath when present and falls back to built-in defaults.
// The returned path is empty when no file was read.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return config.Default(), "", nil
		}
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
		}
		return nil, "", err
	}
	return cfg, path, nil
}

// applyDiff applies the hot-reloadable parts of a config change.
func applyDiff(d config.ConfigDiff, level *slog.LevelVar, runner *executor.Runner) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ExecutorLimitsChanged {
		runner.SetLimits(d.NewTimeout, d.NewMaxOutputBytes)
		eff := runner.Config()
		slog.Info("executor limits changed", "timeout", eff.Timeout, "max_output_bytes", eff.MaxOutputBytes)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, tools []string, exec executor.Config) {
	w := os.Stderr
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║      finanalyst — startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow("LLM", providerLabel(cfg.Providers.LLM))
	for i, fb := range cfg.Providers.Fallbacks {
		printRow(fmt.Sprintf("Fallback %d", i+1), providerLabel(fb))
	}
	printRow("Interpreter", exec.Interpreter)
	printRow("Timeout", exec.Timeout.String())
	printRow("Tools", fmt.Sprintf("%d", len(tools)))
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	if cfg.Server.MCPPath != "" {
		printRow("MCP over HTTP", cfg.Server.MCPPath)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-13s   : %-19s ║\n", kind, value)
}

// instanceID labels this process in telemetry. Each MCP client spawns its own
// shim, so host and pid are enough to tell them apart.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
