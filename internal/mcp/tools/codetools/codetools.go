// Package codetools exposes the analysis code workflow as MCP tools:
//
//   - "analyze_stock"          generate analysis code for a question and keep it.
//   - "save_code"              keep caller-supplied code.
//   - "run_code_and_show_plot" run the kept code and return its output.
//   - "get_saved_code"         return the kept code.
//
// All handlers are safe for concurrent use.
package codetools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/finanalyst/internal/mcp/tools"
	"github.com/MrWong99/finanalyst/internal/shim"
	"github.com/MrWong99/finanalyst/pkg/types"
)

// Tool names.
const (
	AnalyzeStock = "analyze_stock"
	SaveCode     = "save_code"
	RunCode      = "run_code_and_show_plot"
	GetSavedCode = "get_saved_code"
)

// Operations is the code workflow behind the tools. [*shim.Shim] implements it.
type Operations interface {
	Generate(ctx context.Context, query string) shim.Result
	Save(ctx context.Context, code string) shim.Result
	Execute(ctx context.Context) shim.Result
	Retrieve(ctx context.Context) shim.Result
}

type analyzeArgs struct {
	Query string `json:"query"`
}

type saveArgs struct {
	Code string `json:"code"`
}

// NewTools returns the four code workflow tools bound to ops.
func NewTools(ops Operations) []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name: AnalyzeStock,
				Description: "Analyzes stock market data based on the query and generates executable Python code " +
					"for analysis and visualization. Returns a formatted Python script ready for execution. " +
					"The query must name the stock symbol (e.g. TSLA, AAPL, NVDA), the timeframe (e.g. 1d, 1mo, 1y) " +
					"and the action to perform (e.g. plot, analyze, compare). Examples: " +
					"\"Show me Tesla's stock performance over the last 3 months\", " +
					"\"Compare Apple and Microsoft stocks for the past year\", " +
					"\"Analyze the trading volume of Amazon stock for the last month\".",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The stock market question to analyze.",
						},
					},
					"required": []string{"query"},
				},
			},
			Handler: func(ctx context.Context, args string) (tools.Output, error) {
				var a analyzeArgs
				if err := decode(args, &a); err != nil {
					return tools.Output{}, err
				}
				return output(ops.Generate(ctx, a.Query)), nil
			},
			DeclaredP50: 15_000,
			DeclaredMax: 300_000,
		},
		{
			Definition: types.ToolDefinition{
				Name: SaveCode,
				Description: "Expects nicely formatted, working and executable Python code as a string and keeps it " +
					"in memory, replacing any code kept before, so it can be run with run_code_and_show_plot.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"code": map[string]any{
							"type":        "string",
							"description": "The executable Python code.",
						},
					},
					"required": []string{"code"},
				},
				Idempotent: true,
			},
			Handler: func(ctx context.Context, args string) (tools.Output, error) {
				var a saveArgs
				if err := decode(args, &a); err != nil {
					return tools.Output{}, err
				}
				return output(ops.Save(ctx, a.Code)), nil
			},
			DeclaredP50: 1,
			DeclaredMax: 1_000,
		},
		{
			Definition: types.ToolDefinition{
				Name: RunCode,
				Description: "Run the previously saved code from memory and generate the plot. " +
					"Returns the output or any errors from execution.",
				Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
			},
			Handler: func(ctx context.Context, _ string) (tools.Output, error) {
				return output(ops.Execute(ctx)), nil
			},
			DeclaredP50: 5_000,
		},
		{
			Definition: types.ToolDefinition{
				Name:        GetSavedCode,
				Description: "Retrieve the currently saved code from memory. Returns the saved code or a message if no code is saved.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
				Idempotent:  true,
				ReadOnly:    true,
			},
			Handler: func(ctx context.Context, _ string) (tools.Output, error) {
				return output(ops.Retrieve(ctx)), nil
			},
			DeclaredP50: 1,
			DeclaredMax: 1_000,
		},
	}
}

// decode unmarshals args into v. Blank args decode to the zero value.
func decode(args string, v any) error {
	if args == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("codetools: invalid arguments: %w", err)
	}
	return nil
}

// output converts a shim result into a tool output. Precondition results are
// guidance for the caller, not failures, and are not flagged as errors.
func output(r shim.Result) tools.Output {
	return tools.Output{
		Text:    r.String(),
		IsError: r.Kind != shim.KindNone && r.Kind != shim.KindPrecondition,
		Status:  r.Kind.String(),
	}
}
