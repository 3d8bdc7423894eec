// Package matrix implements plan selection for CI task-matrix jobs.
//
// A matrix job is identified by two axes: the operating system it runs on
// and the toolchain channel it builds with. Selection classifies each axis
// combination into exactly one of three plans: a release test run on the
// stable channel, a format+lint pass on non-stable Linux, or a skip.
//
// Selection is a priority chain, not independent conditions: the stable
// channel check always wins, so a stable job never falls through to the
// lint plan regardless of operating system.
package matrix

import (
	"fmt"
	"strings"
)

// OS identifies a matrix operating system axis value.
type OS string

const (
	OSLinux OS = "linux"
	OSMacOS OS = "macos"
)

// ParseOS normalizes an operating system token from flags or CI environment.
//
// "osx" is accepted as a legacy alias for macos. Unknown tokens are an
// input error at the job boundary; Select never sees them.
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return OSLinux, nil
	case "macos", "osx", "darwin":
		return OSMacOS, nil
	default:
		return "", fmt.Errorf("unsupported operating system %q (expected linux or macos)", s)
	}
}

// Plan is one of the three mutually exclusive action classes a job maps to.
type Plan string

const (
	// PlanReleaseTest runs the project's release test command.
	PlanReleaseTest Plan = "release-test"

	// PlanLintCheck runs the format check followed by the lint profiles.
	PlanLintCheck Plan = "lint-check"

	// PlanSkip runs nothing; the job still reports success.
	PlanSkip Plan = "skip"
)

// JobContext is the immutable per-job input to plan selection.
//
// It is constructed once at job entry from host-provided values and passed
// down; logic never reads the ambient environment directly.
type JobContext struct {
	// OS is the operating system axis value.
	OS OS

	// Channel is the toolchain channel the job builds with, e.g. a pinned
	// stable version string or a dated nightly string.
	Channel string

	// Stable is the designated stable channel value for this matrix.
	Stable string

	// Nightly is the designated nightly channel value, used to gate
	// auxiliary tool installation.
	Nightly string
}

// Select classifies a JobContext into its plan.
//
// The chain is exhaustive over {OS × Channel}: every context yields exactly
// one plan.
func Select(ctx JobContext) Plan {
	if ctx.Channel == ctx.Stable {
		return PlanReleaseTest
	}
	if ctx.OS == OSLinux {
		return PlanLintCheck
	}
	return PlanSkip
}

// NeedsToolAddons reports whether the job must install the pinned auxiliary
// tools before its plan can run.
//
// Addons are only required on the nightly channel on Linux, where the lint
// plan depends on them.
func (c JobContext) NeedsToolAddons() bool {
	return c.Channel == c.Nightly && c.OS == OSLinux
}

// Cell is one entry of an expanded matrix cross product.
type Cell struct {
	OS      OS     `json:"os"`
	Channel string `json:"channel"`
	Plan    Plan   `json:"plan"`
	Addons  bool   `json:"addons"`
}

// Expand produces the full OS × channel cross product with each cell's
// selected plan. Order is deterministic: channels vary fastest.
func Expand(oses []OS, channels []string, stable, nightly string) []Cell {
	cells := make([]Cell, 0, len(oses)*len(channels))
	for _, os := range oses {
		for _, ch := range channels {
			ctx := JobContext{OS: os, Channel: ch, Stable: stable, Nightly: nightly}
			cells = append(cells, Cell{
				OS:      os,
				Channel: ch,
				Plan:    Select(ctx),
				Addons:  ctx.NeedsToolAddons(),
			})
		}
	}
	return cells
}
