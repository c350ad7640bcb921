// Package shim implements the four code-handling operations exposed to tool
// callers: generate analysis code from a question, save caller-supplied code,
// execute the saved code, and read it back.
//
// A [Shim] owns a [codeslot.Slot]. Generate and Save overwrite it; Execute and
// Retrieve read it. Operations never return Go errors; every outcome,
// including collaborator failures and script crashes, is a [Result] whose
// [Result.String] is the text shown to the caller.
package shim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/finanalyst/internal/analyst"
	"github.com/MrWong99/finanalyst/internal/codeslot"
	"github.com/MrWong99/finanalyst/internal/executor"
	"github.com/MrWong99/finanalyst/internal/observe"
)

// Runner executes a script and returns its captured output.
// [*executor.Runner] is the production implementation.
type Runner interface {
	Run(ctx context.Context, code string) (*executor.Result, error)
}

// Option configures a [Shim].
type Option func(*Shim)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Shim) { s.metrics = m }
}

// Shim binds the code slot to a generator and a runner.
type Shim struct {
	slot    *codeslot.Slot
	gen     analyst.Generator
	runner  Runner
	metrics *observe.Metrics
}

// New creates a Shim. slot, gen and runner must be non-nil.
func New(slot *codeslot.Slot, gen analyst.Generator, runner Runner, opts ...Option) (*Shim, error) {
	var errs []error
	if slot == nil {
		errs = append(errs, errors.New("code slot is nil"))
	}
	if gen == nil {
		errs = append(errs, errors.New("generator is nil"))
	}
	if runner == nil {
		errs = append(errs, errors.New("runner is nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("shim: %w", err)
	}

	s := &Shim{slot: slot, gen: gen, runner: runner}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Generate asks the generator for code answering query. On success the code
// replaces the slot contents and is returned verbatim; on failure the slot is
// left untouched.
func (s *Shim) Generate(ctx context.Context, query string) (res Result) {
	ctx, span := observe.StartSpan(ctx, "shim.generate")
	defer func() { observe.EndSpan(span, resultErr(res)) }()
	defer recoverInto(&res, KindGeneration)

	code, err := s.gen.RunFinancialAnalysis(ctx, query)
	if err != nil {
		observe.Logger(ctx).Warn("shim: code generation failed", "err", err)
		return failed(KindGeneration, err.Error())
	}
	s.slot.Set(code)
	s.metrics.RecordSlotWrite(ctx, "generate")
	observe.Logger(ctx).Info("shim: generated code stored", "chars", utf8.RuneCountInString(code))
	return ok(code)
}

// Save replaces the slot contents with code and reports its length in
// characters.
func (s *Shim) Save(ctx context.Context, code string) (res Result) {
	ctx, span := observe.StartSpan(ctx, "shim.save")
	defer func() { observe.EndSpan(span, resultErr(res)) }()
	defer recoverInto(&res, KindStorage)

	s.slot.Set(code)
	s.metrics.RecordSlotWrite(ctx, "save")
	n := utf8.RuneCountInString(code)
	observe.Logger(ctx).Info("shim: code saved", "chars", n)
	return ok(fmt.Sprintf("Code saved successfully in memory. Code length: %d characters.", n))
}

// Execute runs the saved code as a top-level script and returns its standard
// output. With nothing saved it returns a [KindPrecondition] result without
// running anything.
func (s *Shim) Execute(ctx context.Context) (res Result) {
	ctx, span := observe.StartSpan(ctx, "shim.execute")
	defer func() { observe.EndSpan(span, resultErr(res)) }()
	defer recoverInto(&res, KindExecution)

	code, saved := s.slot.Get()
	if !saved || code == "" {
		return Result{Kind: KindPrecondition, Text: NoCodeSavedText, Message: "no code saved"}
	}

	s.metrics.ActiveRuns.Add(ctx, 1)
	defer s.metrics.ActiveRuns.Add(ctx, -1)

	start := time.Now()
	out, err := s.runner.Run(ctx, code)
	s.metrics.RecordCodeRun(ctx, runStatus(err), time.Since(start))

	log := observe.Logger(ctx)
	switch {
	case errors.Is(err, executor.ErrEmptyCode):
		// Whitespace-only code is a valid script that prints nothing.
		out, err = &executor.Result{}, nil
	case err != nil:
		var se *executor.ScriptError
		if errors.As(err, &se) {
			log.Warn("shim: code execution failed", "exception", se.Type, "exit_code", se.ExitCode, "err", err)
		} else {
			log.Warn("shim: code execution failed", "err", err)
		}
		return failed(KindExecution, executionMessage(err))
	}

	log.Info("shim: code executed",
		"duration", out.Duration,
		"stdout_bytes", len(out.Stdout),
		"truncated", out.Truncated,
	)
	if out.Stdout == "" {
		return ok("Code executed successfully (no output generated)")
	}
	return ok("Code executed successfully. Output:\n" + out.Stdout)
}

// Retrieve returns the saved code verbatim.
func (s *Shim) Retrieve(ctx context.Context) Result {
	code, saved := s.slot.Get()
	if !saved || code == "" {
		observe.Logger(ctx).Debug("shim: retrieve with empty slot")
		return Result{Kind: KindPrecondition, Text: NoCodeInMemoryText, Message: "no code saved"}
	}
	return ok(code)
}

// recoverInto converts a panic in the surrounding operation into a failed
// result of the given kind.
func recoverInto(res *Result, kind ErrorKind) {
	if r := recover(); r != nil {
		observe.Logger(context.Background()).Error("shim: recovered panic", "kind", kind, "panic", r)
		*res = failed(kind, fmt.Sprint(r))
	}
}

// executionMessage extracts the caller-facing part of a runner error.
func executionMessage(err error) string {
	var se *executor.ScriptError
	if errors.As(err, &se) {
		return se.Error()
	}
	return strings.TrimPrefix(err.Error(), "executor: ")
}

func runStatus(err error) string {
	var se *executor.ScriptError
	switch {
	case err == nil, errors.Is(err, executor.ErrEmptyCode):
		return "ok"
	case errors.As(err, &se):
		return "script_error"
	case errors.Is(err, executor.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// resultErr turns a failed result into an error for span recording.
// Precondition results are not span errors.
func resultErr(r Result) error {
	switch r.Kind {
	case KindNone, KindPrecondition:
		return nil
	default:
		return errors.New(r.String())
	}
}
