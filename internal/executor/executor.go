// Package executor runs analysis scripts in an isolated interpreter subprocess.
//
// Each call to [Runner.Run] writes the code to a fresh directory below the
// configured work directory and executes it as the interpreter's top-level
// script, so Python sees __name__ == "__main__". The child runs in the output
// directory, so files it writes (plots, CSV exports) outlive the run; only the
// script directory is removed afterwards. Standard output and standard
// error of the child are captured into separate bounded buffers; the host
// process's own streams are never redirected, which keeps the MCP stdio
// channel intact on every exit path.
//
// Runs are serialized: a [Runner] executes at most one script at a time.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Defaults applied by [New] for zero-valued [Config] fields.
const (
	DefaultInterpreter    = "python3"
	DefaultTimeout        = 60 * time.Second
	DefaultMaxOutputBytes = 1 << 20 // 1 MiB

	scriptName      = "main.py"
	truncatedMarker = "\n... [output truncated]"
)

var (
	// ErrEmptyCode is returned when Run is called with blank code.
	ErrEmptyCode = errors.New("executor: code must not be empty")

	// ErrTimeout is returned when the script exceeds the configured timeout.
	ErrTimeout = errors.New("executor: execution timed out")

	// ErrInterpreterNotFound is returned when the interpreter binary cannot be
	// located on PATH.
	ErrInterpreterNotFound = errors.New("executor: interpreter not found")
)

// ScriptError reports a script that ran but exited with a non-zero status.
type ScriptError struct {
	// ExitCode is the process exit status.
	ExitCode int

	// Type is the exception class reported by the interpreter (e.g.
	// "ValueError"). Empty when the script exited without a traceback.
	Type string

	// Message is the exception text as str(e) renders it, which may span
	// several lines. Without a traceback it is the last line of stderr.
	Message string

	// Stderr is the full captured standard error.
	Stderr string
}

func (e *ScriptError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Type != "":
		return e.Type
	default:
		return fmt.Sprintf("script exited with status %d", e.ExitCode)
	}
}

// Config controls how scripts are executed.
type Config struct {
	// Interpreter is the binary used to run scripts. Default: python3.
	Interpreter string

	// WorkDir is the parent directory for per-run script directories.
	// Default: $TMPDIR/finanalyst.
	WorkDir string

	// OutputDir is the working directory of the child. Files the script
	// writes there are kept. Default: the process working directory.
	OutputDir string

	// Timeout bounds the wall-clock duration of one run. Default: 60s.
	Timeout time.Duration

	// MaxOutputBytes caps each of stdout and stderr. Default: 1 MiB.
	MaxOutputBytes int

	// Env holds extra environment variables added on top of the host
	// environment. MPLBACKEND defaults to Agg unless set here.
	Env map[string]string
}

// Result is the outcome of a successful run.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Runner executes scripts according to its [Config]. It is safe for concurrent
// use; concurrent calls to Run are executed one after another.
type Runner struct {
	runMu sync.Mutex

	cfgMu sync.RWMutex
	cfg   Config
}

// New creates a Runner. Zero-valued config fields receive defaults.
func New(cfg Config) *Runner {
	return &Runner{cfg: withDefaults(cfg)}
}

func withDefaults(cfg Config) Config {
	if cfg.Interpreter == "" {
		cfg.Interpreter = DefaultInterpreter
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "finanalyst")
	}
	if cfg.OutputDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.OutputDir = wd
		} else {
			cfg.OutputDir = cfg.WorkDir
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return cfg
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.cfg
}

// SetLimits updates the timeout and output cap used by subsequent runs.
// Non-positive values leave the current setting unchanged.
func (r *Runner) SetLimits(timeout time.Duration, maxOutputBytes int) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	if timeout > 0 {
		r.cfg.Timeout = timeout
	}
	if maxOutputBytes > 0 {
		r.cfg.MaxOutputBytes = maxOutputBytes
	}
}

// LookPath resolves the configured interpreter on PATH.
func (r *Runner) LookPath() (string, error) {
	interp := r.Config().Interpreter
	p, err := exec.LookPath(interp)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInterpreterNotFound, interp, err)
	}
	return p, nil
}

// Run executes code as a top-level script and returns its captured output.
//
// A non-zero exit status yields a [*ScriptError]; exceeding the timeout yields
// [ErrTimeout]. The returned *Result is nil whenever err is non-nil.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()

	cfg := r.Config()
	interp, err := r.LookPath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: create work dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: create output dir: %w", err)
	}
	runDir, err := os.MkdirTemp(cfg.WorkDir, "run-")
	if err != nil {
		return nil, fmt.Errorf("executor: create run dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			slog.Warn("executor: failed to remove run dir", "dir", runDir, "err", err)
		}
	}()

	script, err := safePath(runDir, scriptName)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("executor: write script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, interp, script)
	cmd.Dir = cfg.OutputDir
	cmd.Env = buildEnv(os.Environ(), cfg.Env)
	configureProcess(cmd)

	stdout := newCappedBuffer(cfg.MaxOutputBytes)
	stderr := newCappedBuffer(cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	slog.Debug("executor: script finished",
		"interpreter", interp,
		"dir", cfg.OutputDir,
		"duration", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"err", runErr,
	)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, cfg.Timeout)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("executor: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			typ, msg := exceptionSummary(stderr.String())
			slog.Debug("executor: script raised", "type", typ, "exit_code", exitErr.ExitCode())
			return nil, &ScriptError{
				ExitCode: exitErr.ExitCode(),
				Type:     typ,
				Message:  msg,
				Stderr:   stderr.String(),
			}
		}
		return nil, fmt.Errorf("executor: run %s: %w", cfg.Interpreter, runErr)
	}

	return &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  0,
		Duration:  elapsed,
		Truncated: stdout.truncated || stderr.truncated,
	}, nil
}

// safePath resolves rel against baseDir and rejects results outside baseDir.
func safePath(baseDir, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("executor: path must not be empty")
	}
	joined := filepath.Join(baseDir, rel)
	cleanBase := filepath.Clean(baseDir)
	if !strings.HasPrefix(joined, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("executor: path %q escapes the run directory", rel)
	}
	return joined, nil
}

// buildEnv layers extra on top of base. MPLBACKEND=Agg is added when neither
// defines it so plotting scripts never try to open a window.
func buildEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra)+1)
	hasBackend := false
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		if key == "MPLBACKEND" {
			hasBackend = true
		}
		env = append(env, kv)
	}
	for k, v := range extra {
		if k == "MPLBACKEND" {
			hasBackend = true
		}
		env = append(env, k+"="+v)
	}
	if !hasBackend {
		env = append(env, "MPLBACKEND=Agg")
	}
	return env
}

// exceptionSummary splits a Python traceback into the exception class and its
// message. The exception block is everything after the last "  File" frame and
// the indented source and caret lines that follow it, so multi-line messages
// survive intact. Stderr without a frame yields its last non-blank line as the
// message.
func exceptionSummary(stderr string) (typ, msg string) {
	lines := strings.Split(strings.TrimRight(stderr, "\n"), "\n")
	frame := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "  File ") {
			frame = i
		}
	}
	if frame < 0 {
		return "", lastLine(lines)
	}
	i := frame + 1
	for i < len(lines) && strings.HasPrefix(lines[i], " ") {
		i++
	}
	block := strings.TrimSpace(strings.Join(lines[i:], "\n"))
	if block == "" {
		return "", ""
	}
	head, rest, hasRest := strings.Cut(block, "\n")
	name, text, hasText := strings.Cut(head, ": ")
	if !hasText {
		name, text = strings.TrimSuffix(head, ":"), ""
	}
	if !isQualifiedName(name) {
		return "", block
	}
	if hasRest {
		text += "\n" + rest
	}
	return name, strings.TrimSpace(text)
}

// isQualifiedName reports whether s looks like a dotted Python class name such
// as "ValueError" or "requests.exceptions.HTTPError".
func isQualifiedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for j, r := range part {
			letter := r == '_' || unicode.IsLetter(r)
			if !letter && (j == 0 || !unicode.IsDigit(r)) {
				return false
			}
		}
	}
	return true
}

// lastLine returns the last non-blank line, trimmed.
func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// cappedBuffer keeps at most max bytes and silently drops the rest, so a noisy
// child never blocks on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.max - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) Len() int { return b.buf.Len() }

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}
