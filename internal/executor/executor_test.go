package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// newTestRunner returns a Runner rooted in per-test directories and skips the
// test when no python3 is installed.
func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	r := New(cfg)
	if _, err := r.LookPath(); err != nil {
		t.Skipf("interpreter unavailable: %v", err)
	}
	return r
}

// ── Run ───────────────────────────────────────────────────────────────────────

func TestRun_CapturesStdout(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{})

	res, err := r.Run(context.Background(), "print('hi')")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "hi\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hi\n")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRun_RunsAsMain(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{})

	code := "if __name__ == '__main__':\n    print('main')\n"
	res, err := r.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "main" {
		t.Errorf("Stdout = %q, want main", res.Stdout)
	}
}

func TestRun_NoOutput(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{})

	res, err := r.Run(context.Background(), "x = 1 + 1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "" {
		t.Errorf("Stdout = %q, want empty", res.Stdout)
	}
}

func TestRun_ScriptErrors(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{})

	tests := []struct {
		name        string
		code        string
		wantType    string
		wantMessage string
	}{
		{"exception", "raise ValueError('x')", "ValueError", "x"},
		{"multi-line message", "raise ValueError('first line\\nsecond line')", "ValueError", "first line\nsecond line"},
		{"raised in function", "def f():\n    return 1 / 0\nf()", "ZeroDivisionError", "division by zero"},
		{"syntax error", "def broken(:\n", "SyntaxError", ""},
		{"missing import", "import definitely_not_a_module_xyz", "ModuleNotFoundError", "definitely_not_a_module_xyz"},
		{"explicit exit", "import sys\nsys.exit(3)", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), tt.code)
			if res != nil {
				t.Errorf("expected nil result on failure, got %+v", res)
			}
			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v (%T), want *ScriptError", err, err)
			}
			if se.ExitCode == 0 {
				t.Error("ExitCode should be non-zero")
			}
			if se.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", se.Type, tt.wantType)
			}
			if !strings.Contains(se.Message, tt.wantMessage) {
				t.Errorf("Message = %q, want it to contain %q", se.Message, tt.wantMessage)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{Timeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := r.Run(context.Background(), "import time\ntime.sleep(30)")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %v, child was not killed promptly", elapsed)
	}
}

func TestRun_ParentContextCanceled(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, "print('never')")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRun_TruncatesOutput(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, Config{MaxOutputBytes: 64})

	res, err := r.Run(context.Background(), "print('a' * 10000)")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if !strings.HasSuffix(res.Stdout, truncatedMarker) {
		t.Errorf("Stdout missing truncation marker: %q", res.Stdout)
	}
	if len(res.Stdout) != 64+len(truncatedMarker) {
		t.Errorf("len(Stdout) = %d, want %d", len(res.Stdout), 64+len(truncatedMarker))
	}
}

func TestRun_KeepsFilesWrittenToWorkingDirectory(t *testing.T) {
	t.Parallel()
	workDir, outDir := t.TempDir(), t.TempDir()
	r := newTestRunner(t, Config{WorkDir: workDir, OutputDir: outDir})

	code := "import os\nopen('stock_plot.png', 'w').write('png')\nprint(os.path.abspath('stock_plot.png'))"
	res, err := r.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	reported := strings.TrimSpace(res.Stdout)
	if _, err := os.Stat(reported); err != nil {
		t.Fatalf("script reported %q but it is gone: %v", reported, err)
	}
	if got, want := filepath.Dir(reported), outDir; !sameDir(t, got, want) {
		t.Errorf("plot written to %q, want it under %q", got, want)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("script directory not cleaned up: %d entries left", len(entries))
	}
}

// sameDir compares directories after resolving symlinks, since temp dirs on
// some systems sit behind one.
func sameDir(t *testing.T, a, b string) bool {
	t.Helper()
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ra == rb
}

func TestRun_EmptyCode(t *testing.T) {
	t.Parallel()
	r := New(Config{WorkDir: t.TempDir()})
	for _, code := range []string{"", "   \n\t"} {
		if _, err := r.Run(context.Background(), code); !errors.Is(err, ErrEmptyCode) {
			t.Errorf("Run(%q) err = %v, want ErrEmptyCode", code, err)
		}
	}
}

func TestRun_InterpreterNotFound(t *testing.T) {
	t.Parallel()
	r := New(Config{Interpreter: "no-such-interpreter-finanalyst", WorkDir: t.TempDir()})
	if _, err := r.Run(context.Background(), "print(1)"); !errors.Is(err, ErrInterpreterNotFound) {
		t.Fatalf("err = %v, want ErrInterpreterNotFound", err)
	}
}

// ── Config ────────────────────────────────────────────────────────────────────

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	cfg := New(Config{}).Config()
	if cfg.Interpreter != DefaultInterpreter {
		t.Errorf("Interpreter = %q", cfg.Interpreter)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.MaxOutputBytes != DefaultMaxOutputBytes {
		t.Errorf("MaxOutputBytes = %d", cfg.MaxOutputBytes)
	}
	if cfg.WorkDir != filepath.Join(os.TempDir(), "finanalyst") {
		t.Errorf("WorkDir = %q", cfg.WorkDir)
	}
	if wd, err := os.Getwd(); err == nil && cfg.OutputDir != wd {
		t.Errorf("OutputDir = %q, want process working directory %q", cfg.OutputDir, wd)
	}
}

func TestSetLimits(t *testing.T) {
	t.Parallel()
	r := New(Config{})
	r.SetLimits(5*time.Second, 0)
	cfg := r.Config()
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.MaxOutputBytes != DefaultMaxOutputBytes {
		t.Errorf("MaxOutputBytes changed to %d on zero input", cfg.MaxOutputBytes)
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func TestSafePath(t *testing.T) {
	t.Parallel()
	base := t.TempDir()

	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"main.py", false},
		{"sub/main.py", false},
		{"", true},
		{"../escape.py", true},
		{"sub/../../escape.py", true},
		{".", true},
	}
	for _, tt := range tests {
		_, err := safePath(base, tt.rel)
		if (err != nil) != tt.wantErr {
			t.Errorf("safePath(%q) err = %v, wantErr %v", tt.rel, err, tt.wantErr)
		}
	}
}

func TestBuildEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		base  []string
		extra map[string]string
		want  []string
		avoid []string
	}{
		{
			name: "adds headless backend",
			base: []string{"PATH=/usr/bin"},
			want: []string{"PATH=/usr/bin", "MPLBACKEND=Agg"},
		},
		{
			name:  "keeps host backend",
			base:  []string{"MPLBACKEND=svg"},
			want:  []string{"MPLBACKEND=svg"},
			avoid: []string{"MPLBACKEND=Agg"},
		},
		{
			name:  "extra overrides host",
			base:  []string{"HOME=/root", "MPLBACKEND=svg"},
			extra: map[string]string{"HOME": "/sandbox", "MPLBACKEND": "pdf"},
			want:  []string{"HOME=/sandbox", "MPLBACKEND=pdf"},
			avoid: []string{"HOME=/root", "MPLBACKEND=svg", "MPLBACKEND=Agg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buildEnv(tt.base, tt.extra)
			for _, w := range tt.want {
				if !slices.Contains(got, w) {
					t.Errorf("env %v missing %q", got, w)
				}
			}
			for _, a := range tt.avoid {
				if slices.Contains(got, a) {
					t.Errorf("env %v should not contain %q", got, a)
				}
			}
		})
	}
}

func TestExceptionSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stderr   string
		wantType string
		wantMsg  string
	}{
		{
			name:     "single line",
			stderr:   "Traceback (most recent call last):\n  File \"main.py\", line 1, in <module>\n    raise ValueError('x')\nValueError: x\n\n",
			wantType: "ValueError",
			wantMsg:  "x",
		},
		{
			name:     "multi-line message",
			stderr:   "Traceback (most recent call last):\n  File \"main.py\", line 1, in <module>\n    raise ValueError('a\\nb')\nValueError: a\nb\n",
			wantType: "ValueError",
			wantMsg:  "a\nb",
		},
		{
			name:     "caret lines skipped",
			stderr:   "  File \"main.py\", line 1\n    def broken(:\n               ^\nSyntaxError: invalid syntax\n",
			wantType: "SyntaxError",
			wantMsg:  "invalid syntax",
		},
		{
			name:     "chained exceptions use the last one",
			stderr:   "Traceback (most recent call last):\n  File \"main.py\", line 2, in <module>\n    {}['k']\nKeyError: 'k'\n\nDuring handling of the above exception, another exception occurred:\n\nTraceback (most recent call last):\n  File \"main.py\", line 4, in <module>\n    raise RuntimeError('lookup failed')\nRuntimeError: lookup failed\n",
			wantType: "RuntimeError",
			wantMsg:  "lookup failed",
		},
		{
			name:     "qualified class without message",
			stderr:   "Traceback (most recent call last):\n  File \"main.py\", line 1, in <module>\n    raise pkg.CustomError()\npkg.CustomError\n",
			wantType: "pkg.CustomError",
		},
		{
			name:    "no traceback",
			stderr:  "warning: something\nfatal: gave up\n",
			wantMsg: "fatal: gave up",
		},
		{name: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			typ, msg := exceptionSummary(tt.stderr)
			if typ != tt.wantType || msg != tt.wantMsg {
				t.Errorf("exceptionSummary = (%q, %q), want (%q, %q)", typ, msg, tt.wantType, tt.wantMsg)
			}
		})
	}
}

func TestCappedBuffer(t *testing.T) {
	t.Parallel()
	b := newCappedBuffer(5)
	for _, chunk := range []string{"abc", "def", "ghi"} {
		n, err := b.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	if b.Len() != 5 {
		t.Errorf("Len = %d, want 5", b.Len())
	}
	if b.String() != "abcde"+truncatedMarker {
		t.Errorf("String = %q", b.String())
	}
}

func TestScriptError_Error(t *testing.T) {
	t.Parallel()
	if got := (&ScriptError{ExitCode: 1, Type: "ValueError", Message: "x"}).Error(); got != "x" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ScriptError{ExitCode: 1, Type: "ValueError"}).Error(); got != "ValueError" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ScriptError{ExitCode: 3}).Error(); got != "script exited with status 3" {
		t.Errorf("Error() = %q", got)
	}
}
