package agent

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/spf13/cobra"

	"github.com/emberprof/ember/internal/agent"
	"github.com/emberprof/ember/internal/config"
	"github.com/emberprof/ember/internal/logging"
	"github.com/emberprof/ember/internal/report"
)

// NewReportCmd creates the report command for querying stored snapshots.
func NewReportCmd() *cobra.Command {
	var (
		configFile string
		dbPath     string
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored hot-code reports",
		Long: `Show hot-code reports from the agent's snapshot database.

By default the latest stored snapshot is rendered. With --since, every
snapshot taken within the window is rendered, oldest first.

The database path comes from the configuration (storage.path) unless
overridden with --db.

Examples:
  # Latest snapshot
  ember-agent report --db /var/lib/ember/snapshots.duckdb

  # Everything from the last hour
  ember-agent report --db /var/lib/ember/snapshots.duckdb --since 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, configFile, dbPath, since)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to agent configuration file (default: /etc/ember/config.yaml)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Snapshot database path (overrides config)")
	cmd.Flags().DurationVar(&since, "since", 0, "Render all snapshots taken within this window instead of only the latest")

	return cmd
}

func runReport(cmd *cobra.Command, configFile, dbPath string, since time.Duration) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load agent configuration: %w", err)
	}

	path := cfg.Storage.Path
	if dbPath != "" {
		path = dbPath
	}
	if path == "" {
		return fmt.Errorf("no snapshot database configured, set storage.path or pass --db")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot database %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	logger := logging.New(logging.Config{Level: "warn", Pretty: cfg.Log.Pretty})
	storage, err := agent.NewStorage(db, logger)
	if err != nil {
		return fmt.Errorf("failed to open snapshot storage (is the agent running against this file?): %w", err)
	}

	ctx := cmd.Context()

	if since > 0 {
		now := time.Now()
		snaps, err := storage.QueryRange(ctx, now.Add(-since), now)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Printf("No snapshots stored in the last %s.\n", since)
			return nil
		}
		for i := range snaps {
			if err := printSnapshot(&snaps[i]); err != nil {
				return err
			}
		}
		return nil
	}

	snap, err := storage.QueryLatest(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Println("No snapshots stored yet.")
		return nil
	}
	return printSnapshot(snap)
}

func printSnapshot(snap *agent.StoredSnapshot) error {
	fmt.Printf("Snapshot %s taken %s (%d samples, %d tracked, %d evicted)\n",
		snap.ID,
		snap.TakenAt.Format(time.RFC3339),
		snap.Total,
		snap.Tracked,
		snap.Evictions,
	)
	return report.RenderEntries(os.Stdout, snap.Total, snap.Entries)
}
