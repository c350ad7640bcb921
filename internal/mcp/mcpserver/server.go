// Package mcpserver publishes built-in [tools.Tool] values over the Model
// Context Protocol using the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// Every tool call answers with exactly one text content block. Tool failures
// are reported in-band with IsError set; the server never turns them into
// protocol errors.
//
// Typical usage:
//
//	srv := mcpserver.New("finanalyst", "1.0.0")
//	for _, t := range codetools.NewTools(sh) {
//	    if err := srv.Register(t); err != nil { ... }
//	}
//	err := srv.Run(ctx) // serves stdin/stdout until ctx is done or stdin closes
package mcpserver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/finanalyst/internal/mcp"
	"github.com/MrWong99/finanalyst/internal/mcp/tools"
	"github.com/MrWong99/finanalyst/internal/observe"
)

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithWindowSize sets how many recent calls per tool feed [Server.Health].
func WithWindowSize(n int) Option {
	return func(s *Server) { s.windowSize = n }
}

// Server wraps an SDK server and tracks per-tool latency.
//
// The zero value is not usable; create instances with [New].
type Server struct {
	sdk        *mcpsdk.Server
	metrics    *observe.Metrics
	windowSize int

	mu    sync.RWMutex
	stats map[string]*rollingWindow
}

// New creates a Server that identifies itself as name/version during the MCP
// handshake.
func New(name, version string, opts ...Option) *Server {
	s := &Server{
		metrics:    observe.DefaultMetrics(),
		windowSize: defaultWindowSize,
		stats:      make(map[string]*rollingWindow),
	}
	for _, o := range opts {
		o(s)
	}
	s.sdk = mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil)
	return s
}

// Register adds t to the tool catalogue. Names must be unique.
func (s *Server) Register(t tools.Tool) error {
	name := t.Definition.Name
	if name == "" {
		return errors.New("mcpserver: tool must have a non-empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("mcpserver: tool %q has a nil handler", name)
	}

	s.mu.Lock()
	if _, dup := s.stats[name]; dup {
		s.mu.Unlock()
		return fmt.Errorf("mcpserver: tool %q already registered", name)
	}
	w := newRollingWindow(s.windowSize)
	s.stats[name] = w
	s.mu.Unlock()

	s.sdk.AddTool(sdkTool(t), s.handler(t, w))
	return nil
}

// Tools returns the registered tool names in sorted order.
func (s *Server) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.stats))
	for name := range s.stats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Health returns measured latency and error rate for every tool, sorted by
// name.
func (s *Server) Health() []mcp.ToolHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mcp.ToolHealth, 0, len(s.stats))
	for name, w := range s.stats {
		p50, p99, errRate, n := w.Snapshot()
		out = append(out, mcp.ToolHealth{
			Name:          name,
			MeasuredP50Ms: p50,
			MeasuredP99Ms: p99,
			CallCount:     n,
			ErrorRate:     errRate,
		})
	}
	slices.SortFunc(out, func(a, b mcp.ToolHealth) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Run serves a single session over stdin/stdout until ctx is cancelled or
// the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunTransport serves a single session over t until ctx is cancelled or the
// peer disconnects.
func (s *Server) RunTransport(ctx context.Context, t mcpsdk.Transport) error {
	if err := s.sdk.Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

// Connect starts a session over t and returns immediately.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.sdk.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: connect: %w", err)
	}
	return ss, nil
}

// HTTPHandler serves the same tools over MCP Streamable HTTP. All HTTP
// sessions share the server's tool state.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.sdk }, nil)
}

// handler adapts a built-in tool to the SDK's raw tool handler.
func (s *Server) handler(t tools.Tool, w *rollingWindow) mcpsdk.ToolHandler {
	name := t.Definition.Name
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		ctx, span := observe.StartToolSpan(ctx, name)
		if req != nil && req.Session != nil && req.Session.ID() != "" {
			span.SetAttributes(observe.AttrSessionID.String(req.Session.ID()))
		}
		log := observe.Logger(ctx).With("tool", name)

		if t.DeclaredMax > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(t.DeclaredMax)*time.Millisecond)
			defer cancel()
		}

		var args string
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}

		start := time.Now()
		out, err := t.Handler(ctx, args)
		elapsed := time.Since(start)

		status := out.Status
		switch {
		case err != nil:
			out = tools.Output{Text: "Error: " + err.Error(), IsError: true}
			status = "invalid_arguments"
		case status == "":
			status = "ok"
		}

		w.Record(elapsed.Milliseconds(), out.IsError)
		s.metrics.RecordToolCall(ctx, name, status, elapsed)
		log.Debug("mcpserver: tool call", "status", status, "duration", elapsed)

		span.SetAttributes(observe.AttrToolStatus.String(status))
		var spanErr error
		if out.IsError {
			spanErr = errors.New(status)
		}
		observe.EndSpan(span, spanErr)

		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out.Text}},
			IsError: out.IsError,
		}, nil
	}
}

// sdkTool converts a built-in tool definition to the SDK's tool type.
func sdkTool(t tools.Tool) *mcpsdk.Tool {
	def := t.Definition
	schema := def.Parameters
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	return &mcpsdk.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
		Annotations: &mcpsdk.ToolAnnotations{
			ReadOnlyHint:   def.ReadOnly,
			IdempotentHint: def.Idempotent,
		},
	}
}
