package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planTestManifest = `
version: "1.0"
toolchain:
  stable: "1.26.1"
  nightly: "nightly-2018-05-29"
  channels: ["1.26.1", "beta", "nightly-2018-05-29"]
matrix:
  os: ["linux", "osx"]
commands:
  test: ["cargo", "test"]
  fmt: ["cargo", "fmt", "--", "--check"]
  lint:
    default: ["cargo", "clippy"]
    test: ["cargo", "clippy", "--tests"]
addons:
  - name: rustfmt
    version: "0.99.1"
    install: ["cargo", "install", "rustfmt", "--vers", "0.99.1"]
`

func writeTestManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planTestManifest), 0o644))
	return path
}

func capturePlan(t *testing.T, jobPath, osFlag, channelFlag string) (string, error) {
	t.Helper()

	prevPath, prevOS, prevChannel := planJobPath, planOS, planChannel
	t.Cleanup(func() { planJobPath, planOS, planChannel = prevPath, prevOS, prevChannel })
	planJobPath, planOS, planChannel = jobPath, osFlag, channelFlag

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runPlan(cmd, nil)
	return buf.String(), err
}

func TestPlanReleaseTest(t *testing.T) {
	path := writeTestManifest(t)

	out, err := capturePlan(t, path, "osx", "1.26.1")
	require.NoError(t, err)

	assert.Contains(t, out, "os:      macos")
	assert.Contains(t, out, "plan:    release-test")
	assert.Contains(t, out, "addons:  false")
	assert.Contains(t, out, "cargo test")
	assert.NotContains(t, out, "clippy")
}

func TestPlanLintCheckWithAddons(t *testing.T) {
	path := writeTestManifest(t)

	out, err := capturePlan(t, path, "linux", "nightly-2018-05-29")
	require.NoError(t, err)

	assert.Contains(t, out, "plan:    lint-check")
	assert.Contains(t, out, "addons:  true")
	assert.Contains(t, out, "rustfmt@0.99.1")
	assert.Contains(t, out, "lint (default profile)")
	assert.Contains(t, out, "lint (test profile)")
	assert.Contains(t, out, "fmt")
}

func TestPlanSkip(t *testing.T) {
	path := writeTestManifest(t)

	out, err := capturePlan(t, path, "macos", "beta")
	require.NoError(t, err)

	assert.Contains(t, out, "plan:    skip")
	assert.Contains(t, out, "(no commands: skip plan)")
	assert.NotContains(t, out, "cargo test")
}

func TestPlanInvalidOS(t *testing.T) {
	path := writeTestManifest(t)

	_, err := capturePlan(t, path, "windows", "")
	require.Error(t, err)
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, "cargo test", shellJoin([]string{"cargo", "test"}))
	assert.Equal(t, `sh -c "echo hi"`, shellJoin([]string{"sh", "-c", "echo hi"}))
	assert.Equal(t, "", shellJoin(nil))
}
