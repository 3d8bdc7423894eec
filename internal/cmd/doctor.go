package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gridrun/internal/config"
	"github.com/3leaps/gridrun/internal/observability"
	"github.com/3leaps/gridrun/pkg/manifest"
)

var (
	doctorJobPath string
	doctorBackend string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  gridrun doctor                     # Full environment check
  gridrun doctor --job gridrun.yaml  # Also validate a manifest
  gridrun doctor --backend s3        # S3 cache backend checks`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVarP(&doctorJobPath, "job", "j", "", "Validate this manifest as part of the checks")
	doctorCmd.Flags().StringVar(&doctorBackend, "backend", "", "Run cache-backend-specific checks (s3)")
}

func runDoctor(cmd *cobra.Command, args []string) {
	log := observability.CLILogger
	log.Info("=== gridrun doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 4
	if doctorJobPath != "" {
		totalChecks++
	}
	if doctorBackend == "s3" {
		totalChecks++
	}

	// Check 1: Go runtime
	log.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s (%s)",
		checkNum, totalChecks, runtime.GOOS, runtime.GOARCH, runtime.Version()))
	checkNum++

	// Check 2: configuration loads
	cfg := config.GetConfig()
	if cfg == nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking configuration... ❌ Not loaded", checkNum, totalChecks))
		ExitWithCode(log, foundry.ExitFileNotFound, "Configuration failed to load")
	}
	log.Info(fmt.Sprintf("[%d/%d] Checking configuration... ✅ loaded", checkNum, totalChecks),
		zap.String("cache_root", cfg.Cache.Root),
		zap.String("runs_root", cfg.Runs.Root))
	checkNum++

	// Check 3: cache root writable
	if err := checkWritableDir(cfg.Cache.Root); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking cache root... ❌ %s not writable", checkNum, totalChecks, cfg.Cache.Root),
			zap.Error(err))
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking cache root... ✅ %s", checkNum, totalChecks, cfg.Cache.Root))
	}
	checkNum++

	// Check 4: runs root writable
	if err := checkWritableDir(cfg.Runs.Root); err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking runs root... ❌ %s not writable", checkNum, totalChecks, cfg.Runs.Root),
			zap.Error(err))
		allChecks = false
	} else {
		log.Info(fmt.Sprintf("[%d/%d] Checking runs root... ✅ %s", checkNum, totalChecks, cfg.Runs.Root))
	}
	checkNum++

	// Check 5 (optional): manifest loads and commands resolve
	if doctorJobPath != "" {
		m, err := manifest.Load(doctorJobPath)
		if err != nil {
			log.Error(fmt.Sprintf("[%d/%d] Checking manifest... ❌ %s", checkNum, totalChecks, doctorJobPath),
				zap.Error(err))
			allChecks = false
		} else {
			missing := missingCommandBinaries(m)
			if len(missing) > 0 {
				log.Warn(fmt.Sprintf("[%d/%d] Checking manifest... ⚠️  %s valid, but commands not on PATH: %v",
					checkNum, totalChecks, doctorJobPath, missing))
			} else {
				log.Info(fmt.Sprintf("[%d/%d] Checking manifest... ✅ %s", checkNum, totalChecks, doctorJobPath))
			}
		}
		checkNum++
	}

	// Check 6 (optional): S3 credentials resolvable
	if doctorBackend == "s3" {
		if !runS3Checks(cmd.Context(), checkNum, totalChecks) {
			allChecks = false
		}
		checkNum++
	}

	log.Info("")
	if allChecks {
		log.Info("✅ All checks passed! Your gridrun installation is healthy.")
	} else {
		log.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	log.Info("")
	log.Info("=== End Diagnostics ===")
}

func runS3Checks(ctx context.Context, checkNum, totalChecks int) bool {
	log := observability.CLILogger

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot load AWS config", checkNum, totalChecks),
			zap.Error(err))
		printS3Help()
		return false
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		log.Error(fmt.Sprintf("[%d/%d] Checking AWS credentials... ❌ Cannot retrieve credentials", checkNum, totalChecks),
			zap.Error(err))
		printS3Help()
		return false
	}

	log.Info(fmt.Sprintf("[%d/%d] Checking AWS credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("source", creds.Source))
	return true
}

func printS3Help() {
	log := observability.CLILogger
	log.Info("")
	log.Info("To configure AWS credentials:")
	log.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	log.Info("  2. Configure a profile in ~/.aws/credentials, or")
	log.Info("  3. Use an instance/task role when running in AWS")
}

// checkWritableDir verifies the directory exists (creating it if needed)
// and accepts a probe file.
func checkWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".doctor-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// missingCommandBinaries reports plan executables not found on PATH.
func missingCommandBinaries(m *manifest.Manifest) []string {
	var missing []string
	seen := map[string]bool{}
	for _, argv := range [][]string{m.Commands.Test, m.Commands.Fmt, m.Commands.Lint.Default, m.Commands.Lint.Test} {
		if len(argv) == 0 || seen[argv[0]] {
			continue
		}
		seen[argv[0]] = true
		if _, err := exec.LookPath(argv[0]); err != nil {
			missing = append(missing, argv[0])
		}
	}
	return missing
}
