// Package mcp holds the types shared by the finanalyst MCP server and client.
//
// The server ([mcpserver]) publishes the built-in tools over stdio or
// streamable HTTP. The client ([mcpclient]) connects to such a server, lists
// its tools and calls them; finanalystctl is built on it.
package mcp

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio communicates over stdin/stdout of a subprocess.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ServerConfig describes how a client reaches a single MCP server.
type ServerConfig struct {
	// Name identifies the server in log messages and errors.
	Name string

	// Transport specifies the connection mechanism.
	Transport Transport

	// Command is the executable and its arguments, used with [TransportStdio].
	// Example: "/usr/local/bin/finanalyst -config /etc/finanalyst.yaml"
	Command string

	// URL is the endpoint used with [TransportStreamableHTTP].
	// Example: "http://localhost:8090/mcp"
	URL string

	// Env holds additional environment variables for the server process when
	// Transport is [TransportStdio]. May be nil.
	Env map[string]string
}

// ToolResult holds the outcome of a single tool call.
type ToolResult struct {
	// Content is the tool's textual output.
	Content string

	// IsError indicates an application-level failure reported by the tool,
	// as opposed to a transport failure returned as a Go error.
	IsError bool

	// DurationMs is the wall-clock round trip in milliseconds.
	DurationMs int64
}

// ToolHealth captures the measured runtime performance of a single tool.
type ToolHealth struct {
	Name          string  `json:"name"`
	MeasuredP50Ms int64   `json:"p50_ms"`
	MeasuredP99Ms int64   `json:"p99_ms"`
	CallCount     int     `json:"calls"`
	ErrorRate     float64 `json:"error_rate"`
}
