package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Result captures the outcome of a finished process
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExecError is returned when a process could not be started, exited non-zero,
// or was killed because its context ended. Result is always populated.
type ExecError struct {
	Command string
	Result  *Result
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: exit code %d: %v", e.Command, e.Result.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Runner runs an external command and waits for it to finish
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands as local subprocesses
type ExecRunner struct {
	Dir string
	Env []string
}

// NewExecRunner creates a runner that executes commands in dir with the
// current environment plus env
func NewExecRunner(dir string, env ...string) *ExecRunner {
	return &ExecRunner{Dir: dir, Env: env}
}

// Run executes name with args, capturing stdout and stderr separately
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Give the process a chance to exit after SIGKILL before Wait returns
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		ExitCode: exitCode(cmd, err),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return result, &ExecError{Command: name, Result: result, Err: err}
	}

	return result, nil
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
