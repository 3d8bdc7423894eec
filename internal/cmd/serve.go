package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gridrun/internal/config"
	"github.com/3leaps/gridrun/internal/observability"
	"github.com/3leaps/gridrun/internal/server"
	"github.com/3leaps/gridrun/internal/server/handlers"
	"github.com/3leaps/gridrun/pkg/runstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status HTTP server",
	Long: `Serve health probes and run history over HTTP.

Endpoints:
  GET /health, /health/live, /health/ready, /health/startup
  GET /version
  GET /v1/runs, /v1/runs/{run-id}

Example:
  gridrun serve
  gridrun serve --port 9000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config)")
}

// runsHealthChecker verifies the run store root stays reachable.
type runsHealthChecker struct {
	store *runstore.Store
}

func (c runsHealthChecker) CheckHealth(_ context.Context) error {
	_, err := c.store.List()
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	store := runstore.NewStore(cfg.Runs.Root)

	handlers.InitHealthManager(versionInfo.Version)
	handlers.GetHealthManager().RegisterChecker("runs", runsHealthChecker{store: store})

	srv := server.New(host, port, server.WithRunStore(store))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeouts := server.Timeouts{
		Read:  cfg.Server.ReadTimeout,
		Write: cfg.Server.WriteTimeout,
		Idle:  cfg.Server.IdleTimeout,
	}
	if err := srv.Start(ctx, timeouts, cfg.Server.ShutdownTimeout); err != nil {
		observability.CLILogger.Error("Status server failed", zap.Error(err))
		return err
	}
	return nil
}
