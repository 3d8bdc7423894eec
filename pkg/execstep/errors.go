package execstep

import (
	"errors"
	"fmt"
)

// BuildFailure reports a failed plan step.
//
// Stage identifies which sub-step failed ("test", "fmt", "lint"), matching
// the job's binary pass/fail contract: the first failure is terminal, no
// retries.
type BuildFailure struct {
	// Stage is the failing plan stage.
	Stage Stage

	// Step is the human-readable step label.
	Step string

	// ExitCode is the command's exit code, or -1 if it never ran or was
	// killed by a signal.
	ExitCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BuildFailure) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: %s failed with exit code %d", e.Stage, e.Step, e.ExitCode)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Stage, e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BuildFailure) Unwrap() error {
	return e.Err
}

// InstallError reports a failed tool addon installation.
//
// Install failures are fatal to the job: the addons are required inputs to
// the lint plan, so the plan never starts.
type InstallError struct {
	// Tool is the addon name.
	Tool string

	// Version is the pinned version that failed to install.
	Version string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s@%s: %v", e.Tool, e.Version, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// AsBuildFailure extracts a *BuildFailure from an error chain.
func AsBuildFailure(err error) (*BuildFailure, bool) {
	var bf *BuildFailure
	if errors.As(err, &bf) {
		return bf, true
	}
	return nil, false
}

// AsInstallError extracts an *InstallError from an error chain.
func AsInstallError(err error) (*InstallError, bool) {
	var ie *InstallError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// asBuildFailure normalizes a step error, preserving an existing
// *BuildFailure from the runner.
func asBuildFailure(step Step, err error) error {
	if bf, ok := AsBuildFailure(err); ok {
		return bf
	}
	return &BuildFailure{Stage: step.Stage, Step: stepLabel(step), ExitCode: -1, Err: err}
}

func stepLabel(step Step) string {
	if step.Name != "" {
		return step.Name
	}
	if len(step.Argv) > 0 {
		return step.Argv[0]
	}
	return "(empty step)"
}
