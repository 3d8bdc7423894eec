// Package cmd implements the gridrun command line interface.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gridrun/internal/config"
	"github.com/3leaps/gridrun/internal/observability"
	"github.com/3leaps/gridrun/internal/server/handlers"
)

// versionInfo carries build-time version metadata set via ldflags.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo installs build-time version metadata. Called from main
// before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit)
	rootCmd.Version = formatVersion()
}

func formatVersion() string {
	return fmt.Sprintf("%s (commit %s, built %s)",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
}

var (
	rootVerbose    bool
	rootLogProfile string
)

var rootCmd = &cobra.Command{
	Use:   "gridrun",
	Short: "CI task matrix evaluator",
	Long: `gridrun evaluates one cell of a CI task matrix: given an operating
system and a toolchain channel it selects exactly one plan (release test,
lint check, or skip), runs it with dependency cache priming and pruning
around it, and reports the result as JSONL records and a persisted run
record.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		observability.InitCLILogger(rootLogProfile, rootVerbose)
		if _, err := config.Load(cmd.Context()); err != nil {
			return exitError(exitCodeConfigError, "Failed to load configuration", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootLogProfile, "log-profile", "cli", "Log output profile (cli|json|test)")

	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Version = formatVersion()
}

// Local exit codes for outcomes foundry has no dedicated code for.
const (
	// exitPlanFailed is the conventional CI failure code for a red job.
	exitPlanFailed = 1

	exitCodeConfigError = 78 // EX_CONFIG
)

// exitCodeError carries the process exit code alongside the message.
type exitCodeError struct {
	code    int
	message string
	err     error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s (exit code %d)", e.message, e.code)
	}
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &exitCodeError{code: code, message: message, err: err}
}

// ExitWithCode logs message and terminates the process immediately.
// Reserved for situations where returning up the cobra stack is not useful.
func ExitWithCode(logger *zap.Logger, code int, message string, fields ...zap.Field) {
	logger.Error(message, fields...)
	observability.Sync()
	os.Exit(code)
}

// Execute runs the root command and exits the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		observability.CLILogger.Error(err.Error())
		observability.Sync()

		var ce *exitCodeError
		if errors.As(err, &ce) {
			os.Exit(ce.code)
		}
		os.Exit(1)
	}
	observability.Sync()
}
