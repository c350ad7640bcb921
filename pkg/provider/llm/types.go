package llm

import "github.com/MrWong99/finanalyst/pkg/types"

// Message is an alias so callers of this package need not import pkg/types.
type Message = types.Message

// ModelCapabilities is an alias for [types.ModelCapabilities].
type ModelCapabilities = types.ModelCapabilities
