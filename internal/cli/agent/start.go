package agent

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberprof/ember/internal/agent"
	"github.com/emberprof/ember/internal/config"
	"github.com/emberprof/ember/internal/logging"
	"github.com/emberprof/ember/pkg/version"
)

// NewStartCmd creates the start command for the profiling agent.
func NewStartCmd() *cobra.Command {
	var (
		configFile  string
		capacity    int
		interval    time.Duration
		top         int
		output      string
		cumulative  bool
		listen      string
		noServer    bool
		noSampler   bool
		storagePath string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ember profiling agent",
		Long: `Start the ember profiling agent as a long-running process.

The agent will:
- Sample the running process on a fixed interval
- Count samples per code unit in a bounded profile
- Render a ranked hot-code report every report interval
- Serve ingest, report and metrics endpoints over HTTP
- Persist report snapshots locally (if storage is enabled)
- Run until stopped by signal

Configuration sources (in order of precedence):
1. Command-line flags
2. Environment variables (EMBER_*)
3. Config file (--config flag or /etc/ember/config.yaml)
4. Defaults

Environment Variables:
  EMBER_PROFILE_CAPACITY - Maximum distinct code units tracked
  EMBER_REPORT_INTERVAL  - Report interval (e.g. 10s, 1m)
  EMBER_REPORT_TOP       - Ranked entries per report
  EMBER_REPORT_OUTPUT    - Report sink (stdout, stderr, or a file path)
  EMBER_SERVER_LISTEN    - HTTP listen address
  EMBER_STORAGE_PATH     - Snapshot database path
  EMBER_LOG_LEVEL        - Logging level (debug, info, warn, error)

Configuration File Format:
  profile:
    capacity: 1024
  report:
    interval: 10s
    top: 20
    output: stdout
  server:
    listen: "127.0.0.1:6060"
  storage:
    enabled: true
    path: /var/lib/ember/snapshots.duckdb

Examples:
  # Defaults: sample this process, report to stdout every 10s
  ember-agent start

  # With config file
  ember-agent start --config /etc/ember/config.yaml

  # Keep counts across intervals, report the top 50
  ember-agent start --cumulative --top 50

  # Ingest-only mode for external samplers
  ember-agent start --no-sampler --listen 0.0.0.0:6060`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load agent configuration: %w", err)
			}

			// Flags beat file and environment values, but only when set.
			if cmd.Flags().Changed("capacity") {
				cfg.Profile.Capacity = capacity
			}
			if cmd.Flags().Changed("interval") {
				cfg.Report.Interval = interval
			}
			if cmd.Flags().Changed("top") {
				cfg.Report.Top = top
			}
			if cmd.Flags().Changed("output") {
				cfg.Report.Output = output
			}
			if cmd.Flags().Changed("cumulative") {
				cfg.Profile.Cumulative = cumulative
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}
			if noServer {
				cfg.Server.Enabled = false
			}
			if noSampler {
				cfg.Sampler.Enabled = false
			}
			if cmd.Flags().Changed("storage-path") {
				cfg.Storage.Enabled = true
				cfg.Storage.Path = storagePath
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid agent configuration: %w", err)
			}

			logger := logging.New(logging.Config{
				Level:  cfg.Log.Level,
				Pretty: cfg.Log.Pretty,
			})

			logger.Info().
				Str("version", version.String()).
				Msg("ember-agent starting")

			agentInstance, err := agent.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create agent: %w", err)
			}

			if err := agentInstance.Start(); err != nil {
				return fmt.Errorf("failed to start agent: %w", err)
			}

			logger.Info().Msg("Agent started successfully - waiting for shutdown signal")

			// Wait for interrupt signal.
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			sig := <-sigChan

			logger.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal - stopping agent")

			return agentInstance.Stop()
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to agent configuration file (default: /etc/ember/config.yaml)")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "Maximum distinct code units tracked at once")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Report interval")
	cmd.Flags().IntVar(&top, "top", 0, "Ranked entries per report")
	cmd.Flags().StringVar(&output, "output", "", "Report sink: stdout, stderr, or a file path")
	cmd.Flags().BoolVar(&cumulative, "cumulative", false, "Keep counts across report intervals")
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address")
	cmd.Flags().BoolVar(&noServer, "no-server", false, "Disable the HTTP endpoint")
	cmd.Flags().BoolVar(&noSampler, "no-sampler", false, "Disable the built-in runtime sampler (ingest-only mode)")
	cmd.Flags().StringVar(&storagePath, "storage-path", "", "Enable snapshot storage at this DuckDB path")

	return cmd
}
