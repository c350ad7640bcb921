// Package tools defines the shared [Tool] type used by the built-in MCP tool
// packages. Each sub-package exports a constructor that returns a slice of
// [Tool] values ready for registration with the MCP server.
package tools

import (
	"context"

	"github.com/MrWong99/finanalyst/pkg/types"
)

// Output is what a tool handler hands back to the protocol layer.
type Output struct {
	// Text is the single text content block returned to the caller.
	Text string

	// IsError marks an application-level failure. The call itself still
	// succeeds at the protocol level.
	IsError bool

	// Status is a short outcome label recorded in metrics ("ok",
	// "execution", ...). Empty means "ok".
	Status string
}

// Tool is a built-in tool ready for registration with the MCP server.
//
// DeclaredP50 and DeclaredMax are latency hints in milliseconds. A positive
// DeclaredMax is enforced as a hard deadline on the handler's context.
type Tool struct {
	// Definition is the tool's caller-facing schema.
	Definition types.ToolDefinition

	// Handler executes the tool with JSON-encoded args. A non-nil error means
	// the arguments could not be used at all; it is reported to the caller as
	// an error result. Implementations must be safe for concurrent use.
	Handler func(ctx context.Context, args string) (Output, error)

	DeclaredP50 int64
	DeclaredMax int64
}
