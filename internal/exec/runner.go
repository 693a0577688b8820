package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"midiscribe/internal/apperr"
	"midiscribe/internal/logging"
)

// stderrTail bounds how much of a failing process's stderr ends up in errors.
const stderrTail = 2048

// Result holds command execution output
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes Python entrypoints of the transcription pipeline.
type Runner struct {
	PythonPath string
	ScriptsDir string
	Logger     *zap.Logger
}

// NewRunner creates a runner. An empty pythonPath prefers a virtualenv
// inside scriptsDir and falls back to python3 on PATH.
func NewRunner(pythonPath, scriptsDir string, logger *zap.Logger) *Runner {
	if pythonPath == "" {
		venvPython := filepath.Join(scriptsDir, ".venv", "bin", "python")
		if _, err := os.Stat(venvPython); err == nil {
			pythonPath = venvPython
		} else {
			pythonPath = "python3"
		}
	}
	return &Runner{
		PythonPath: pythonPath,
		ScriptsDir: scriptsDir,
		Logger:     logging.OrNop(logger),
	}
}

// RunScript executes a Python script from ScriptsDir with arguments
func (r *Runner) RunScript(ctx context.Context, script string, args ...string) (*Result, error) {
	scriptPath := filepath.Join(r.ScriptsDir, script)
	return r.execute(ctx, append([]string{scriptPath}, args...))
}

// RunModule executes a Python module with -m flag
func (r *Runner) RunModule(ctx context.Context, module string, args ...string) (*Result, error) {
	return r.execute(ctx, append([]string{"-m", module}, args...))
}

func (r *Runner) execute(ctx context.Context, args []string) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.PythonPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.ScriptsDir != "" {
		cmd.Env = append(os.Environ(), "PYTHONPATH="+pythonPath(r.ScriptsDir, os.Getenv("PYTHONPATH")))
	}

	r.Logger.Debug("running pipeline process", zap.String("python", r.PythonPath), zap.Strings("args", args))

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}

	return result, apperr.NewProcessError(filepath.Base(r.PythonPath), "transcription", result.ExitCode, tail(result.Stderr), err)
}

// pythonPath puts scriptsDir in front of the operator's PYTHONPATH.
func pythonPath(scriptsDir, existing string) string {
	if existing == "" {
		return scriptsDir
	}
	return scriptsDir + string(os.PathListSeparator) + existing
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	start := len(s) - stderrTail
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
