package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/finanalyst/internal/config"
	"github.com/MrWong99/finanalyst/internal/health"
	"github.com/MrWong99/finanalyst/internal/mcp/mcpserver"
	"github.com/MrWong99/finanalyst/internal/observe"
)

// newHTTPServer builds the optional side listener: Prometheus metrics,
// health probes, per-tool latency stats and, when configured, MCP over
// Streamable HTTP.
func newHTTPServer(cfg config.ServerConfig, srv *mcpserver.Server, metrics *observe.Metrics, checkers ...health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(srv.Health()); err != nil {
			slog.Warn("encode tool stats", "err", err)
		}
	})
	if cfg.MCPPath != "" {
		mux.Handle(cfg.MCPPath, srv.HTTPHandler())
	}

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveHTTP runs hs until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, hs *http.Server, tls *config.TLSConfig) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listener started", "addr", hs.Addr, "tls", tls != nil)
		var err error
		if tls != nil {
			err = hs.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = hs.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
