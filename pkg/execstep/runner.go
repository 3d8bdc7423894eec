package execstep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ExecRunner runs steps as real subprocesses.
//
// Output handling is opaque passthrough: the child's stdout and stderr are
// wired straight to Log, interleaved in arrival order, exactly as a CI job
// log expects.
type ExecRunner struct {
	// Log receives the combined stdout/stderr of every step.
	// Defaults to os.Stderr so job output never mixes with JSONL on stdout.
	Log io.Writer

	// Timeout bounds each step. Zero means no per-step timeout.
	Timeout time.Duration
}

// NewExecRunner creates a runner writing step output to log.
func NewExecRunner(log io.Writer, timeout time.Duration) *ExecRunner {
	return &ExecRunner{Log: log, Timeout: timeout}
}

// Run executes one step, blocking until it exits.
//
// A non-zero exit becomes a *BuildFailure carrying the step's stage and
// exit code. Context cancellation kills the child and surfaces as a
// *BuildFailure wrapping the context error.
func (r *ExecRunner) Run(ctx context.Context, step Step) error {
	if len(step.Argv) == 0 {
		return &BuildFailure{Stage: step.Stage, Step: stepLabel(step), ExitCode: -1,
			Err: errors.New("step has no command")}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := r.Log
	if log == nil {
		log = os.Stderr
	}

	cmd := exec.CommandContext(ctx, step.Argv[0], step.Argv[1:]...)
	cmd.Dir = step.Dir
	cmd.Stdout = log
	cmd.Stderr = log
	if len(step.Env) > 0 {
		cmd.Env = append(os.Environ(), step.Env...)
	}

	if err := cmd.Run(); err != nil {
		return r.wrapRunError(ctx, step, err)
	}
	return nil
}

func (r *ExecRunner) wrapRunError(ctx context.Context, step Step, err error) error {
	// Prefer the context error: a killed child reports an opaque signal
	// exit, but the cause is the deadline or cancellation.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &BuildFailure{Stage: step.Stage, Step: stepLabel(step), ExitCode: -1,
			Err: fmt.Errorf("%s: %w", stepLabel(step), ctxErr)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &BuildFailure{Stage: step.Stage, Step: stepLabel(step),
			ExitCode: exitErr.ExitCode(), Err: err}
	}

	// Start failures (binary not found, permission denied).
	return &BuildFailure{Stage: step.Stage, Step: stepLabel(step), ExitCode: -1, Err: err}
}
