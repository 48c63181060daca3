package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/config"
	"github.com/marmos91/simfs/pkg/server"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the simfs server",
	Long: `Start the simfs server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/simfs/config.yaml when present.

Examples:
  # Start with defaults
  simfs start

  # Start with custom config file
  simfs start --config /etc/simfs/config.yaml

  # Start with environment variable overrides
  SIMFS_LOGGING_LEVEL=DEBUG SIMFS_ADAPTERS_CONSOLE_PORT=7171 simfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("simfs %s starting", Version)
	logger.Info("Configuration loaded from %s", getConfigSource(GetConfigFile()))

	// Metrics first, so the registry exists before collectors are created.
	metricsResult := config.InitializeMetrics(cfg)

	j, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return err
	}

	svc, err := config.CreateService(cfg, j, metricsResult.ServiceMetrics)
	if err != nil {
		if j != nil {
			_ = j.Close()
		}
		return err
	}

	srv := server.New(svc, cfg.Server.ShutdownTimeout)
	if j != nil {
		srv.OnShutdown(j.Close)
	}

	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
		srv.SetMetricsServer(metricsResult.Server)
	} else {
		logger.Info("Metrics collection disabled")
	}

	adapters, err := config.CreateAdapters(cfg, metricsResult.ConsoleMetrics)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
