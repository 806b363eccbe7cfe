package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait blocks on pipes held open by grandchildren
// once the collector itself has exited or been killed.
const waitDelay = 5 * time.Second

type execRunner struct {
	interpreter string
	script      string
	dir         string
	waitDelay   time.Duration
}

// Option configures the exec based Runner.
type Option func(*execRunner)

// WithInterpreter runs the script through the given interpreter, e.g. python3.
func WithInterpreter(interpreter string) Option {
	return func(r *execRunner) {
		r.interpreter = interpreter
	}
}

// WithDir sets the working directory of the collector process.
func WithDir(dir string) Option {
	return func(r *execRunner) {
		r.dir = dir
	}
}

// New creates a Runner that executes script as a child process with no arguments.
func New(script string, opts ...Option) Runner {
	r := &execRunner{script: script, waitDelay: waitDelay}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *execRunner) Run(ctx context.Context) (Result, error) {
	if r.script == "" {
		return Result{ExitCode: -1}, ErrNoScript
	}

	name, args := r.script, []string(nil)
	if r.interpreter != "" {
		name, args = r.interpreter, []string{r.script}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start collector: %w", err)
	}
	waitErr := cmd.Wait()

	result := Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = exitCode(cmd.ProcessState)
	}

	// A clean exit stays a success even when a background child kept the
	// output pipes open past the wait delay.
	if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		return result, nil
	}

	if waitErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, ErrTimeout
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return result, nil
	case errors.As(waitErr, &exitErr):
		return result, &ExitError{Code: result.ExitCode, Stderr: result.Stderr}
	default:
		return result, fmt.Errorf("wait for collector: %w", waitErr)
	}
}

// exitCode reports a collector killed by a signal as the negated signal number.
func exitCode(state *os.ProcessState) int {
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return -int(status.Signal())
	}
	return state.ExitCode()
}

type timeoutRunner struct {
	next    Runner
	timeout time.Duration
}

// WithTimeout bounds every run of next by timeout. A non-positive timeout
// returns next unchanged, so runs stay unbounded.
func WithTimeout(next Runner, timeout time.Duration) Runner {
	if timeout <= 0 {
		return next
	}
	return &timeoutRunner{next: next, timeout: timeout}
}

func (r *timeoutRunner) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.next.Run(ctx)
	if errors.Is(err, ErrTimeout) {
		return result, fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
	}
	return result, err
}
