// Package manifest provides loading and validation of gridrun job manifests.
//
// A job manifest is a YAML or JSON file that configures a matrix job: the
// toolchain axes (stable and nightly channel values plus the channel list),
// the commands each plan runs, pinned tool addons, and the dependency cache.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	toolchain:
//	  stable: "1.26.1"
//	  nightly: "nightly-2018-05-29"
//	  channels: ["1.26.1", "beta", "nightly-2018-05-29"]
//	commands:
//	  test: ["make", "test-release"]
//	  fmt: ["make", "fmt-check"]
//	  lint:
//	    default: ["make", "lint"]
//	    test: ["make", "lint-tests"]
//	cache:
//	  backend: local
//	  lockfiles: ["go.sum"]
package manifest

import "time"

// Manifest represents a validated job manifest.
//
// Required fields are Version, Toolchain, and Commands. Matrix, Addons,
// Cache, and Output are optional with defaults applied during loading.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Toolchain declares the channel axis values.
	Toolchain ToolchainConfig `json:"toolchain" yaml:"toolchain"`

	// Matrix declares the operating system axis (optional).
	Matrix MatrixConfig `json:"matrix,omitempty" yaml:"matrix,omitempty"`

	// Commands declares what each plan runs.
	Commands CommandsConfig `json:"commands" yaml:"commands"`

	// Addons lists pinned auxiliary tools installed on nightly Linux jobs.
	Addons []AddonConfig `json:"addons,omitempty" yaml:"addons,omitempty"`

	// Cache configures the dependency cache store (optional).
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`

	// Output configures the job log destination (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// ToolchainConfig declares the toolchain channel axis.
type ToolchainConfig struct {
	// Stable is the designated stable channel value, e.g. "1.26.1".
	// Jobs on this channel run the release test plan on every OS.
	Stable string `json:"stable" yaml:"stable"`

	// Nightly is the designated nightly channel value, e.g.
	// "nightly-2018-05-29". Gates tool addon installation on Linux.
	Nightly string `json:"nightly,omitempty" yaml:"nightly,omitempty"`

	// Channels is the full channel axis for matrix expansion.
	// Defaults to [Stable, Nightly] when empty.
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// MatrixConfig declares the operating system axis.
type MatrixConfig struct {
	// OS lists the operating system axis values. Accepted values are
	// "linux", "macos", and the legacy alias "osx".
	// Defaults to ["linux", "macos"].
	OS []string `json:"os,omitempty" yaml:"os,omitempty"`
}

// CommandsConfig declares the command each plan stage invokes.
//
// Commands are argv vectors, not shell strings: the first element is the
// executable, the rest are arguments. No shell interpretation happens.
type CommandsConfig struct {
	// Test is the release test command. Required.
	Test []string `json:"test" yaml:"test"`

	// Fmt is the formatting check command, the first step of the lint plan.
	Fmt []string `json:"fmt,omitempty" yaml:"fmt,omitempty"`

	// Lint declares the lint command per build profile.
	Lint LintConfig `json:"lint,omitempty" yaml:"lint,omitempty"`

	// Timeout bounds each individual command, e.g. "30m". Default: "30m".
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LintConfig declares lint commands for the default and test build profiles.
// The lint plan runs Default first, then Test, with short-circuit semantics.
type LintConfig struct {
	Default []string `json:"default,omitempty" yaml:"default,omitempty"`
	Test    []string `json:"test,omitempty" yaml:"test,omitempty"`
}

// AddonConfig pins one auxiliary tool required by the lint plan on nightly.
type AddonConfig struct {
	// Name identifies the tool, e.g. "fmt-tool".
	Name string `json:"name" yaml:"name"`

	// Version is the pinned version, e.g. "0.99.1".
	Version string `json:"version" yaml:"version"`

	// Install is the argv that installs this tool at the pinned version.
	Install []string `json:"install" yaml:"install"`
}

// CacheConfig configures the dependency cache store.
type CacheConfig struct {
	// Backend selects the store implementation: "local" or "s3".
	// Default: "local".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Dir is the workspace directory the cache primes into and prunes
	// from, relative to the job working directory. Default: ".depcache".
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Root is the store location for the local backend. Default is taken
	// from application config when empty.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	// Lockfiles are the files hashed into the cache fingerprint together
	// with the toolchain channel. Missing files hash as absent rather than
	// failing, so fresh checkouts still get a stable key.
	Lockfiles []string `json:"lockfiles,omitempty" yaml:"lockfiles,omitempty"`

	// Retain lists doublestar globs of entries kept by prune. Entries
	// matching no pattern are trimmed. Empty means retain everything.
	Retain []string `json:"retain,omitempty" yaml:"retain,omitempty"`

	// MaxIdleAge trims entries not touched for this long, e.g. "720h".
	// Empty disables age-based pruning.
	MaxIdleAge string `json:"max_idle_age,omitempty" yaml:"max_idle_age,omitempty"`

	// S3 configures the s3 backend. Required when Backend is "s3".
	S3 *S3CacheConfig `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// S3CacheConfig configures the S3 cache backend.
type S3CacheConfig struct {
	// Bucket is the cache bucket name (required for the s3 backend).
	Bucket string `json:"bucket" yaml:"bucket"`

	// Prefix is prepended to every cache key. Default: "gridrun-cache/".
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the AWS region. Optional; SDK resolution applies.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the AWS credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// ForcePathStyle forces path-style URLs, needed by most
	// S3-compatible stores.
	ForcePathStyle bool `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
}

// OutputConfig configures the job log destination.
type OutputConfig struct {
	// Destination is "stdout", or a file path (optionally "file:" prefixed).
	// Default: "stdout".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultCacheBackend   = "local"
	DefaultCacheDir       = ".depcache"
	DefaultS3CachePrefix  = "gridrun-cache/"
	DefaultCommandTimeout = 30 * time.Minute
	DefaultDestination    = "stdout"
)

// ApplyDefaults fills optional fields with their documented defaults.
// Called by the loader after validation.
func (m *Manifest) ApplyDefaults() {
	if len(m.Matrix.OS) == 0 {
		m.Matrix.OS = []string{"linux", "macos"}
	}
	if len(m.Toolchain.Channels) == 0 {
		m.Toolchain.Channels = append(m.Toolchain.Channels, m.Toolchain.Stable)
		if m.Toolchain.Nightly != "" {
			m.Toolchain.Channels = append(m.Toolchain.Channels, m.Toolchain.Nightly)
		}
	}
	if m.Commands.Timeout == "" {
		m.Commands.Timeout = DefaultCommandTimeout.String()
	}
	if m.Cache.Backend == "" {
		m.Cache.Backend = DefaultCacheBackend
	}
	if m.Cache.Dir == "" {
		m.Cache.Dir = DefaultCacheDir
	}
	if m.Cache.S3 != nil && m.Cache.S3.Prefix == "" {
		m.Cache.S3.Prefix = DefaultS3CachePrefix
	}
	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
}

// CommandTimeout parses the configured command timeout, falling back to the
// default on an empty or non-positive value.
func (m *Manifest) CommandTimeout() time.Duration {
	if m.Commands.Timeout == "" {
		return DefaultCommandTimeout
	}
	d, err := time.ParseDuration(m.Commands.Timeout)
	if err != nil || d <= 0 {
		return DefaultCommandTimeout
	}
	return d
}
