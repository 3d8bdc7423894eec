package runstore

import "time"

// RunState is the lifecycle state of a matrix job run.
//
// NOTE: These values are persisted in run.json and are part of the stable
// on-disk contract.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateSuccess RunState = "success"
	RunStateFailed  RunState = "failed"
	RunStateSkipped RunState = "skipped"
)

// RunRecord is the persistent record written to run.json.
//
// The schema is designed for backward-compatible extension (additive fields).
type RunRecord struct {
	RunID        string   `json:"run_id"`
	State        RunState `json:"state"`
	Plan         string   `json:"plan"`
	OS           string   `json:"os"`
	Channel      string   `json:"channel"`
	ManifestPath string   `json:"manifest_path"`
	CacheKey     string   `json:"cache_key,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// FailedStage identifies which plan stage failed, when State is failed.
	FailedStage string `json:"failed_stage,omitempty"`

	// ExitCode is the process exit code the run mapped to.
	ExitCode int `json:"exit_code"`

	CachePrimed bool `json:"cache_primed"`

	LogPath string `json:"log_path,omitempty"`
}
