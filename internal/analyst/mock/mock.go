// Package mock provides a test double for analyst.Generator.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/finanalyst/internal/analyst"
)

// Generator is a mock implementation of analyst.Generator. Set Code and Err
// before use; every call is recorded in Queries.
type Generator struct {
	mu sync.Mutex

	// Code is returned on success.
	Code string

	// Err, if non-nil, is returned instead of Code.
	Err error

	// Panic, if non-empty, makes RunFinancialAnalysis panic with this value.
	Panic string

	// Queries records every query received, in order.
	Queries []string
}

// RunFinancialAnalysis records query and returns Code, Err.
func (g *Generator) RunFinancialAnalysis(_ context.Context, query string) (string, error) {
	g.mu.Lock()
	g.Queries = append(g.Queries, query)
	code, err, p := g.Code, g.Err, g.Panic
	g.mu.Unlock()

	if p != "" {
		panic(p)
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// Calls returns a copy of the recorded queries.
func (g *Generator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.Queries))
	copy(out, g.Queries)
	return out
}

var _ analyst.Generator = (*Generator)(nil)
