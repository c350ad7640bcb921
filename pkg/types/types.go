// Package types defines the shared types used across finanalyst packages.
//
// These types are the common vocabulary between the LLM providers, the
// analyst crew, and the MCP tool layer. Each package defines its own domain
// types; only cross-cutting data structures live here to avoid circular
// imports.
package types

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// ToolDefinition describes a tool that is offered to an LLM or exposed over MCP.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts and
	// MCP tool listings).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any

	// Idempotent indicates whether the tool can be safely retried.
	Idempotent bool

	// ReadOnly indicates the tool does not modify server state.
	ReadOnly bool
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
