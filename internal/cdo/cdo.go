// Package cdo drives the Climate Data Operators command-line tool. Each
// operator call is one blocking subprocess; output files are created in
// the runner's temp dir and removed by CleanTempDir.
package cdo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TempPrefix marks files the runner created in its temp dir.
const TempPrefix = "cdoGo"

// Error reports a failed operator call.
type Error struct {
	Operator string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("cdo: %s failed (exit %d): %s", e.Operator, e.ExitCode, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Call describes one operator invocation.
type Call struct {
	// Options are global flags placed before the operator, e.g. "-P 8 -f nc".
	Options string
	// Operator with its parameters, e.g. "remapcon,n128".
	Operator string
	// Input is the operator input; it may chain further operators
	// ("-setgrid,grid.txt ice.nc").
	Input string
}

// Args renders the call as argv without the binary and output file.
func (c Call) Args() []string {
	args := strings.Fields(c.Options)
	args = append(args, "-"+strings.TrimPrefix(c.Operator, "-"))
	return append(args, strings.Fields(c.Input)...)
}

// Runner executes CDO operators.
type Runner struct {
	binary  string
	tempDir string
	logger  *zap.Logger
	env     []string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEnv appends KEY=VALUE pairs to the subprocess environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// NewRunner returns a runner for binary that stages outputs in tempDir.
// An empty binary means "cdo" from PATH; an empty tempDir means os.TempDir.
func NewRunner(binary, tempDir string, opts ...Option) *Runner {
	if strings.TrimSpace(binary) == "" {
		binary = "cdo"
	}
	if strings.TrimSpace(tempDir) == "" {
		tempDir = os.TempDir()
	}
	r := &Runner{binary: binary, tempDir: filepath.Clean(tempDir), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TempDir returns where output files are staged.
func (r *Runner) TempDir() string {
	return r.tempDir
}

// Remapcon conservatively remaps input onto grid and returns the output path.
func (r *Runner) Remapcon(ctx context.Context, grid, input, options string) (string, error) {
	return r.toFile(ctx, Call{Options: options, Operator: "remapcon," + grid, Input: input})
}

// Seltimestep selects timestep step ("1" first, "-1" last) of input.
func (r *Runner) Seltimestep(ctx context.Context, step, input string) (string, error) {
	return r.toFile(ctx, Call{Operator: "seltimestep," + step, Input: input})
}

// Griddes returns the grid description of input, one line per element.
func (r *Runner) Griddes(ctx context.Context, input string) ([]string, error) {
	stdout, err := r.run(ctx, Call{Operator: "griddes", Input: input}, "")
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(string(stdout), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// CleanTempDir removes every file the runner staged in its temp dir.
func (r *Runner) CleanTempDir() error {
	matches, err := filepath.Glob(filepath.Join(r.tempDir, TempPrefix+"*"))
	if err != nil {
		return fmt.Errorf("cdo: list temp dir: %w", err)
	}
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cdo: clean temp dir: %w", errors.Join(errs...))
	}
	r.logger.Debug("cdo temp dir cleaned", zap.String("dir", r.tempDir), zap.Int("removed", len(matches)))
	return nil
}

func (r *Runner) toFile(ctx context.Context, call Call) (string, error) {
	if err := os.MkdirAll(r.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("cdo: ensure temp dir: %w", err)
	}
	output := filepath.Join(r.tempDir, TempPrefix+uuid.NewString()+".nc")
	if _, err := r.run(ctx, call, output); err != nil {
		return "", err
	}
	return output, nil
}

func (r *Runner) run(ctx context.Context, call Call, output string) ([]byte, error) {
	args := call.Args()
	if output != "" {
		args = append(args, output)
	}
	cmd := exec.CommandContext(ctx, r.binary, args...)
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("cdo call", zap.String("binary", r.binary), zap.Strings("args", args))
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &Error{Operator: call.Operator, Args: args, ExitCode: -1, Stderr: stderr.String(), Err: ctxErr}
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &Error{Operator: call.Operator, Args: args, ExitCode: exitCode, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
