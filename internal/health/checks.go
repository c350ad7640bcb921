package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/MrWong99/finanalyst/internal/resilience"
)

// Interpreter returns a checker that fails when the script interpreter cannot
// be resolved. lookPath is typically [executor.Runner.LookPath].
func Interpreter(lookPath func() (string, error)) Checker {
	return Checker{
		Name: "interpreter",
		Check: func(context.Context) error {
			_, err := lookPath()
			return err
		},
	}
}

// OutputDir returns a checker that fails when scripts could not write files
// into dir. The directory is created when missing, as the runner does.
func OutputDir(dir string) Checker {
	return Checker{
		Name: "output_dir",
		Check: func(context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".readyz-")
			if err != nil {
				return err
			}
			name := f.Name()
			if err := f.Close(); err != nil {
				return err
			}
			return os.Remove(name)
		},
	}
}

// WorkDir returns a checker that fails when scratch directories cannot be
// created under dir.
func WorkDir(dir string) Checker {
	return Checker{
		Name: "work_dir",
		Check: func(context.Context) error {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return err
			}
			probe, err := os.MkdirTemp(dir, "readyz-")
			if err != nil {
				return err
			}
			return os.Remove(probe)
		},
	}
}

// BreakerStates reports the circuit breaker state per LLM backend.
// [*resilience.LLMFallback] implements it.
type BreakerStates interface {
	States() map[string]resilience.State
}

// Providers returns an optional checker that fails when every LLM backend has
// an open circuit breaker. A nil b means no provider is configured.
func Providers(b BreakerStates) Checker {
	return Checker{
		Name:     "providers",
		Optional: true,
		Check: func(context.Context) error {
			if b == nil {
				return errors.New("no LLM provider configured")
			}
			states := b.States()
			var open []string
			for name, st := range states {
				if st == resilience.StateOpen {
					open = append(open, name)
				}
			}
			if len(states) > 0 && len(open) == len(states) {
				slices.Sort(open)
				return fmt.Errorf("all circuit breakers open: %v", open)
			}
			return nil
		},
	}
}
