// Package output provides JSONL output for matrix job runs.
//
// Output is structured as typed record envelopes containing the selected
// plan, executed steps, errors, and a final summary. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: gridrun.<type>.v<version>
const (
	// TypePlan identifies plan selection records.
	TypePlan = "gridrun.plan.v1"

	// TypeStep identifies executed step records.
	TypeStep = "gridrun.step.v1"

	// TypeError identifies error records.
	TypeError = "gridrun.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "gridrun.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific payload
// in the Data field.
type Record struct {
	// Type identifies the record type (e.g., "gridrun.step.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this job run.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// PlanRecord is the data payload emitted once after plan selection.
type PlanRecord struct {
	// OS is the job's operating system axis value.
	OS string `json:"os"`

	// Channel is the toolchain channel the job builds with.
	Channel string `json:"channel"`

	// Plan is the selected plan.
	Plan string `json:"plan"`

	// Addons reports whether tool addon installation precedes the plan.
	Addons bool `json:"addons"`

	// CacheKey is the dependency cache fingerprint, if caching is active.
	CacheKey string `json:"cache_key,omitempty"`
}

// StepRecord is the data payload for one executed step.
type StepRecord struct {
	// Stage classifies the step ("test", "fmt", "lint", "install").
	Stage string `json:"stage"`

	// Name is the step label.
	Name string `json:"name"`

	// ExitCode is the command's exit code (0 on success, -1 if unknown).
	ExitCode int `json:"exit_code"`

	// Duration is how long the step ran.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Stage is the failing stage, if applicable.
	Stage string `json:"stage,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeBuildFailure indicates a plan step exited non-zero.
	ErrCodeBuildFailure = "BUILD_FAILURE"

	// ErrCodeInstallFailure indicates a tool addon failed to install.
	ErrCodeInstallFailure = "INSTALL_FAILURE"

	// ErrCodeCacheMiss indicates cache priming found no entry (non-fatal).
	ErrCodeCacheMiss = "CACHE_MISS"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// SummaryRecord is the data payload emitted once at the end of a run.
type SummaryRecord struct {
	// Plan is the plan the run executed.
	Plan string `json:"plan"`

	// State is the terminal run state ("success", "failed", "skipped").
	State string `json:"state"`

	// Steps is the number of executed steps.
	Steps int `json:"steps"`

	// FailedStage is the stage that failed, if any.
	FailedStage string `json:"failed_stage,omitempty"`

	// CachePrimed reports whether cache priming found an entry.
	CachePrimed bool `json:"cache_primed"`

	// CachePruned reports whether the prune step ran.
	CachePruned bool `json:"cache_pruned"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
