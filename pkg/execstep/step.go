// Package execstep runs a job plan as an ordered sequence of fallible
// command steps.
//
// Each step is an argv vector executed without shell interpretation, with
// stdout/stderr passed through to the job log. Sequences have short-circuit
// "and" semantics: the first failing step stops the sequence, and the
// failure identifies which stage failed.
package execstep

import (
	"context"
	"time"
)

// Stage identifies which part of a plan a step belongs to. Stage values
// appear in failure reports and JSONL step records.
type Stage string

const (
	StageTest    Stage = "test"
	StageFmt     Stage = "fmt"
	StageLint    Stage = "lint"
	StageInstall Stage = "install"
)

// Step is a single command invocation inside a plan.
type Step struct {
	// Stage classifies the step for failure reporting.
	Stage Stage

	// Name is a human-readable label, e.g. "lint (test profile)".
	Name string

	// Argv is the command vector. Argv[0] is the executable.
	Argv []string

	// Dir is the working directory. Empty means the process working dir.
	Dir string

	// Env entries are appended to the inherited environment.
	Env []string
}

// Runner executes a single step.
//
// Implementations stream the command's combined output to the job log and
// block until the step completes or ctx is done.
type Runner interface {
	Run(ctx context.Context, step Step) error
}

// RunSequence executes steps strictly in order with short-circuit
// semantics: each step must succeed before the next runs.
//
// The returned error is the first step's failure, normalized to a
// *BuildFailure carrying the failing stage.
func RunSequence(ctx context.Context, r Runner, steps []Step) error {
	for _, step := range steps {
		if err := r.Run(ctx, step); err != nil {
			return asBuildFailure(step, err)
		}
	}
	return nil
}

// StepResult captures one executed step for run records and logs.
type StepResult struct {
	Stage    Stage         `json:"stage"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	ExitCode int           `json:"exit_code"`
}
