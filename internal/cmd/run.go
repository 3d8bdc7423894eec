package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gridrun/internal/config"
	"github.com/3leaps/gridrun/internal/observability"
	"github.com/3leaps/gridrun/pkg/cachestore"
	cachestores3 "github.com/3leaps/gridrun/pkg/cachestore/s3"
	"github.com/3leaps/gridrun/pkg/execstep"
	"github.com/3leaps/gridrun/pkg/manifest"
	"github.com/3leaps/gridrun/pkg/matrix"
	"github.com/3leaps/gridrun/pkg/output"
	"github.com/3leaps/gridrun/pkg/runstore"
	"github.com/3leaps/gridrun/pkg/tooladdon"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one matrix job cell",
	Long: `Run one cell of the task matrix as defined in a YAML or JSON manifest.

The cell's axes come from --os and --channel, with CI environment fallbacks
(GRIDRUN_OS, GRIDRUN_CHANNEL) resolved once at entry. The selected plan runs
with cache priming before and pruning after, on every exit path.

Example:
  gridrun run --job gridrun.yaml --os linux --channel nightly-2018-05-29
  gridrun run --job gridrun.yaml --channel 1.26.1
  gridrun run --job gridrun.yaml --output run.jsonl`,
	RunE: runRun,
}

var (
	runJobPath string
	runOS      string
	runChannel string
	runOutput  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().StringVar(&runOS, "os", "", "Operating system axis value (linux|macos|osx)")
	runCmd.Flags().StringVar(&runChannel, "channel", "", "Toolchain channel axis value")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Override output destination")

	_ = runCmd.MarkFlagRequired("job")
}

// resolveJobContext builds the immutable job context once at entry.
// Flags win over CI environment variables; the host OS is the last resort
// for the OS axis, the manifest's stable channel for the channel axis.
func resolveJobContext(m *manifest.Manifest, osFlag, channelFlag string) (matrix.JobContext, error) {
	osToken := osFlag
	if osToken == "" {
		osToken = os.Getenv("GRIDRUN_OS")
	}
	if osToken == "" {
		osToken = hostOS()
	}
	parsedOS, err := matrix.ParseOS(osToken)
	if err != nil {
		return matrix.JobContext{}, err
	}

	channel := channelFlag
	if channel == "" {
		channel = os.Getenv("GRIDRUN_CHANNEL")
	}
	if channel == "" {
		channel = m.Toolchain.Stable
	}

	return matrix.JobContext{
		OS:      parsedOS,
		Channel: channel,
		Stable:  m.Toolchain.Stable,
		Nightly: m.Toolchain.Nightly,
	}, nil
}

func hostOS() string {
	if runtime.GOOS == "darwin" {
		return "macos"
	}
	return runtime.GOOS
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := observability.CLILogger

	m, err := manifest.Load(runJobPath)
	if err != nil {
		log.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	jobCtx, err := resolveJobContext(m, runOS, runChannel)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --os value", err)
	}

	runID := uuid.NewString()
	log.Info("Starting job",
		zap.String("run_id", runID),
		zap.String("os", string(jobCtx.OS)),
		zap.String("channel", jobCtx.Channel))

	cfg := config.GetConfig()
	store := runstore.NewStore(cfg.Runs.Root)

	result := executeJob(ctx, m, jobCtx, runID, store)

	switch {
	case result.installErr != nil:
		return exitError(foundry.ExitExternalServiceUnavailable, "Tool addon install failed", result.installErr)
	case result.planErr != nil:
		return exitError(exitPlanFailed, "Plan failed", result.planErr)
	}
	return nil
}

// jobResult is the terminal outcome of one job run.
type jobResult struct {
	installErr error
	planErr    error
}

// executeJob runs the job lifecycle: prime, install addons when needed,
// execute the plan, prune, persist the run record and JSONL summary.
func executeJob(ctx context.Context, m *manifest.Manifest, jobCtx matrix.JobContext, runID string, store *runstore.Store) jobResult {
	log := observability.CLILogger
	started := time.Now()

	plan := matrix.Select(jobCtx)
	needsAddons := jobCtx.NeedsToolAddons() && len(m.Addons) > 0

	record := &runstore.RunRecord{
		RunID:        runID,
		State:        runstore.RunStateRunning,
		Plan:         string(plan),
		OS:           string(jobCtx.OS),
		Channel:      jobCtx.Channel,
		ManifestPath: runJobPath,
		CreatedAt:    started.UTC(),
		StartedAt:    timePtr(started.UTC()),
		LogPath:      store.LogPath(runID),
	}
	if err := store.Write(record); err != nil {
		log.Warn("Failed to persist run record", zap.Error(err))
	}

	writer, cleanup, err := createWriter(m, runID, runOutput)
	if err != nil {
		log.Error("Failed to create output writer", zap.Error(err))
		return jobResult{planErr: err}
	}
	defer cleanup()

	stepLog, closeStepLog := openStepLog(store.LogPath(runID))
	defer closeStepLog()

	// Cache fingerprint partitions entries per toolchain identity.
	cacheKey, err := cachestore.Fingerprint(jobCtx.Channel, m.Cache.Lockfiles)
	if err != nil {
		log.Warn("Cache fingerprint failed, running uncached", zap.Error(err))
	}

	var lease *cachestore.Lease
	if cacheKey != "" {
		cacheStore, err := openCacheStore(ctx, m)
		if err != nil {
			log.Warn("Cache store unavailable, running uncached", zap.Error(err))
		} else {
			defer func() { _ = cacheStore.Close() }()
			policy := prunePolicy(m)
			lease = cachestore.Acquire(ctx, cacheStore, cacheKey, m.Cache.Dir, policy, log)
			record.CacheKey = cacheKey
			record.CachePrimed = lease.Primed
			if !lease.Primed {
				_ = writer.WriteError(ctx, &output.ErrorRecord{
					Code:    output.ErrCodeCacheMiss,
					Message: "cache entry not found, cold start",
				})
			}
		}
	}

	// Safety net: Release is idempotent, so the normal path in finish and
	// this deferred call never prune twice.
	pruned := false
	defer func() {
		if lease != nil {
			lease.Release(ctx)
		}
	}()

	_ = writer.WritePlan(ctx, &output.PlanRecord{
		OS:       string(jobCtx.OS),
		Channel:  jobCtx.Channel,
		Plan:     string(plan),
		Addons:   needsAddons,
		CacheKey: cacheKey,
	})

	runner := execstep.NewExecRunner(stepLog, m.CommandTimeout())

	finish := func(state runstore.RunState, failedStage string, steps int, planErr, installErr error) jobResult {
		if lease != nil {
			pruned = lease.Release(ctx) != nil
		}
		ended := time.Now()
		record.State = state
		record.FailedStage = failedStage
		record.EndedAt = timePtr(ended.UTC())
		if planErr != nil || installErr != nil {
			record.ExitCode = exitPlanFailed
		}
		if err := store.Write(record); err != nil {
			log.Warn("Failed to persist run record", zap.Error(err))
		}

		duration := ended.Sub(started)
		_ = writer.WriteSummary(ctx, &output.SummaryRecord{
			Plan:          string(plan),
			State:         summaryState(state),
			Steps:         steps,
			FailedStage:   failedStage,
			CachePrimed:   record.CachePrimed,
			CachePruned:   pruned,
			Duration:      duration,
			DurationHuman: duration.Round(time.Millisecond).String(),
		})
		return jobResult{planErr: planErr, installErr: installErr}
	}

	if needsAddons {
		installer := tooladdon.NewInstaller(runner, log)
		if err := installer.Install(ctx, m.Addons); err != nil {
			_ = writer.WriteError(ctx, &output.ErrorRecord{
				Code:    output.ErrCodeInstallFailure,
				Message: err.Error(),
				Stage:   string(execstep.StageInstall),
			})
			return finish(runstore.RunStateFailed, string(execstep.StageInstall), 0, nil, err)
		}
	}

	steps := planSteps(m, plan)
	executed := 0
	for _, step := range steps {
		stepStart := time.Now()
		stepErr := runner.Run(ctx, step)
		stepDur := time.Since(stepStart)
		executed++

		rec := &output.StepRecord{
			Stage:         string(step.Stage),
			Name:          step.Name,
			Duration:      stepDur,
			DurationHuman: stepDur.Round(time.Millisecond).String(),
		}
		if stepErr != nil {
			if bf, ok := execstep.AsBuildFailure(stepErr); ok {
				rec.ExitCode = bf.ExitCode
			} else {
				rec.ExitCode = -1
			}
			_ = writer.WriteStep(ctx, rec)

			bf, _ := execstep.AsBuildFailure(stepErr)
			failedStage := string(step.Stage)
			if bf != nil {
				failedStage = string(bf.Stage)
			}
			_ = writer.WriteError(ctx, &output.ErrorRecord{
				Code:    output.ErrCodeBuildFailure,
				Message: stepErr.Error(),
				Stage:   failedStage,
			})
			return finish(runstore.RunStateFailed, failedStage, executed, stepErr, nil)
		}
		_ = writer.WriteStep(ctx, rec)
	}

	state := runstore.RunStateSuccess
	if plan == matrix.PlanSkip {
		state = runstore.RunStateSkipped
	}
	return finish(state, "", executed, nil, nil)
}

// planSteps maps the selected plan to its ordered command steps.
func planSteps(m *manifest.Manifest, plan matrix.Plan) []execstep.Step {
	switch plan {
	case matrix.PlanReleaseTest:
		return []execstep.Step{
			{Stage: execstep.StageTest, Name: "test", Argv: m.Commands.Test},
		}
	case matrix.PlanLintCheck:
		return []execstep.Step{
			{Stage: execstep.StageFmt, Name: "fmt", Argv: m.Commands.Fmt},
			{Stage: execstep.StageLint, Name: "lint (default profile)", Argv: m.Commands.Lint.Default},
			{Stage: execstep.StageLint, Name: "lint (test profile)", Argv: m.Commands.Lint.Test},
		}
	default:
		return nil
	}
}

func summaryState(state runstore.RunState) string {
	switch state {
	case runstore.RunStateSkipped:
		return "skipped"
	case runstore.RunStateSuccess:
		return "success"
	default:
		return "failed"
	}
}

func prunePolicy(m *manifest.Manifest) cachestore.PrunePolicy {
	policy := cachestore.PrunePolicy{Retain: m.Cache.Retain}
	if m.Cache.MaxIdleAge != "" {
		if d, err := time.ParseDuration(m.Cache.MaxIdleAge); err == nil {
			policy.MaxIdleAge = d
		}
	}
	return policy
}

// openCacheStore builds the configured cache backend.
func openCacheStore(ctx context.Context, m *manifest.Manifest) (cachestore.Store, error) {
	switch m.Cache.Backend {
	case "s3":
		if m.Cache.S3 == nil {
			return nil, fmt.Errorf("cache backend s3 requires cache.s3 settings")
		}
		return cachestores3.New(ctx, cachestores3.Config{
			Bucket:         m.Cache.S3.Bucket,
			Prefix:         m.Cache.S3.Prefix,
			Region:         m.Cache.S3.Region,
			Endpoint:       m.Cache.S3.Endpoint,
			Profile:        m.Cache.S3.Profile,
			ForcePathStyle: m.Cache.S3.ForcePathStyle,
		})
	default:
		root := m.Cache.Root
		if root == "" {
			root = config.GetConfig().Cache.Root
		}
		return cachestore.NewLocalStore(root)
	}
}

// createWriter builds the JSONL writer for the manifest's destination.
// Returns the writer, a cleanup function, and any error.
func createWriter(m *manifest.Manifest, runID, override string) (output.Writer, func(), error) {
	dest := m.Output.Destination
	if override != "" {
		dest = override
	}

	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, runID)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, runID)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// openStepLog tees step output to the run's log file and stderr.
func openStepLog(path string) (io.Writer, func()) {
	f, err := os.Create(path)
	if err != nil {
		observability.CLILogger.Warn("Failed to create run log file",
			zap.String("path", path), zap.Error(err))
		return os.Stderr, func() {}
	}
	return io.MultiWriter(os.Stderr, f), func() { _ = f.Close() }
}

func timePtr(t time.Time) *time.Time {
	return &t
}
