// Package mcpclient connects to a single MCP server, imports its tool
// catalogue and calls tools on it.
//
// It uses the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk)
// and supports the stdio and streamable-HTTP transports.
//
// Typical usage:
//
//	c := mcpclient.New("finanalystctl", "1.0.0")
//	err := c.Connect(ctx, mcp.ServerConfig{
//	    Name:      "finanalyst",
//	    Transport: mcp.TransportStdio,
//	    Command:   "finanalyst -config finanalyst.yaml",
//	})
//	res, err := c.CallTool(ctx, "save_code", `{"code":"print(1)"}`)
//	c.Close()
package mcpclient

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/finanalyst/internal/mcp"
	"github.com/MrWong99/finanalyst/pkg/types"
)

// ErrNotConnected is returned when a method needs a session and none is open.
var ErrNotConnected = errors.New("mcpclient: not connected")

// Client holds at most one live server session.
//
// The zero value is not usable; create instances with [New].
type Client struct {
	sdk *mcpsdk.Client

	mu      sync.RWMutex
	server  string
	session *mcpsdk.ClientSession
	tools   map[string]types.ToolDefinition
}

// New creates a Client that identifies itself as name/version.
func New(name, version string) *Client {
	return &Client{
		sdk:   mcpsdk.NewClient(&mcpsdk.Implementation{Name: name, Version: version}, nil),
		tools: make(map[string]types.ToolDefinition),
	}
}

// Connect opens a session to the server described by cfg and imports its
// tools. An existing session is closed and replaced.
//
// For [mcp.TransportStdio], cfg.Command is split on whitespace into the
// executable and its arguments, and cfg.Env is added to the inherited
// environment.
func (c *Client) Connect(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return errors.New("mcpclient: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("mcpclient: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("mcpclient: stdio server %q requires a non-empty command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		cmd.Stderr = os.Stderr
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcpclient: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	return c.ConnectTransport(ctx, cfg.Name, transport)
}

// ConnectTransport is like [Client.Connect] but uses a ready transport.
func (c *Client) ConnectTransport(ctx context.Context, name string, transport mcpsdk.Transport) error {
	session, err := c.sdk.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcpclient: connect to %q: %w", name, err)
	}

	discovered := make(map[string]types.ToolDefinition)
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcpclient: list tools of %q: %w", name, err)
		}
		discovered[tool.Name] = toolDefinition(tool)
	}

	c.mu.Lock()
	old := c.session
	c.server, c.session, c.tools = name, session, discovered
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// toolDefinition converts an SDK tool into a [types.ToolDefinition].
func toolDefinition(t *mcpsdk.Tool) types.ToolDefinition {
	def := types.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schemaToMap(t.InputSchema),
	}
	if t.Annotations != nil {
		def.ReadOnly = t.Annotations.ReadOnlyHint
		def.Idempotent = t.Annotations.IdempotentHint
	}
	return def
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// Tools returns the imported tool catalogue sorted by name.
func (c *Client) Tools() []types.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.ToolDefinition, 0, len(c.tools))
	for _, d := range c.tools {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b types.ToolDefinition) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// CallTool calls the named tool with JSON-encoded args. An empty args string
// or "{}" sends no arguments.
//
// A non-nil *ToolResult is returned even when the tool reports an
// application-level error. A Go error is returned only for unknown tools,
// malformed args and transport or protocol failures.
func (c *Client) CallTool(ctx context.Context, name, args string) (*mcp.ToolResult, error) {
	c.mu.RLock()
	session, server := c.session, c.server
	_, known := c.tools[name]
	c.mu.RUnlock()

	if session == nil {
		return nil, ErrNotConnected
	}
	if !known {
		return nil, fmt.Errorf("mcpclient: tool %q not offered by %q", name, server)
	}

	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("mcpclient: invalid args JSON for tool %q: %w", name, err)
		}
	}

	start := time.Now()
	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: argsMap})
	if err != nil {
		return nil, fmt.Errorf("mcpclient: call to tool %q failed: %w", name, err)
	}

	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return &mcp.ToolResult{
		Content:    sb.String(),
		IsError:    res.IsError,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close ends the current session, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	session, server := c.session, c.server
	c.session = nil
	c.tools = make(map[string]types.ToolDefinition)
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := session.Close(); err != nil {
		return fmt.Errorf("mcpclient: close %q: %w", server, err)
	}
	return nil
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
