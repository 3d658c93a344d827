// Package agent assembles the ember profiling agent: the hotspot profile,
// the runtime sampler, the periodic report cycle, snapshot storage and the
// HTTP endpoint, under a single start/stop lifecycle.
package agent

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"github.com/emberprof/ember/internal/config"
	"github.com/emberprof/ember/internal/hotspot"
	"github.com/emberprof/ember/internal/report"
	"github.com/emberprof/ember/internal/safe"
	"github.com/emberprof/ember/internal/sampler"
)

// Agent runs the profiling pipeline for one process.
type Agent struct {
	config  *config.Config
	logger  zerolog.Logger
	profile *hotspot.Profile
	metrics *Metrics

	driver    *sampler.Driver
	server    *Server
	storage   *Storage
	selfStats *SelfStats

	db       *sql.DB
	sink     io.Writer
	sinkFile *os.File

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an agent from the resolved configuration. Components that are
// disabled in the configuration stay nil and are skipped by Start and Stop.
func New(cfg *config.Config, logger zerolog.Logger) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	profile, err := hotspot.New(cfg.Profile.Capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	sink, sinkFile, err := resolveSink(cfg.Report.Output)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		config:   cfg,
		logger:   logger.With().Str("component", "agent").Logger(),
		profile:  profile,
		metrics:  NewMetrics(profile),
		sink:     sink,
		sinkFile: sinkFile,
	}

	agent.ctx, agent.cancel = context.WithCancel(context.Background())

	if cfg.Storage.Enabled {
		db, err := sql.Open("duckdb", cfg.Storage.Path)
		if err != nil {
			agent.close()
			return nil, fmt.Errorf("failed to open snapshot database: %w", err)
		}
		agent.db = db

		storage, err := NewStorage(db, logger)
		if err != nil {
			agent.close()
			return nil, err
		}
		agent.storage = storage
	}

	if cfg.Sampler.Enabled {
		driver, err := sampler.NewDriver(
			agent.ctx,
			profile,
			sampler.NewGoRuntimeSource(),
			logger,
			sampler.Config{Interval: cfg.Sampler.Interval},
		)
		if err != nil {
			agent.close()
			return nil, fmt.Errorf("failed to create sampler: %w", err)
		}
		agent.driver = driver
	}

	if cfg.Server.Enabled {
		agent.server = NewServer(cfg.Server.Listen, profile, agent.metrics, cfg.Report.Top, logger)
	}

	// Process self stats are best effort; the agent runs fine without them.
	selfStats, err := NewSelfStats(logger, 0)
	if err != nil {
		agent.logger.Warn().Err(err).Msg("Process stats unavailable")
	} else {
		agent.selfStats = selfStats
	}

	return agent, nil
}

// Start launches the configured components and the report cycle.
func (a *Agent) Start() error {
	a.logger.Info().
		Int("capacity", a.profile.Capacity()).
		Dur("report_interval", a.config.Report.Interval).
		Bool("sampler", a.driver != nil).
		Bool("server", a.server != nil).
		Bool("storage", a.storage != nil).
		Msg("Starting ember agent")

	if a.driver != nil {
		a.driver.Start()
	}

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	if a.storage != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.storage.RunCleanupLoop(a.ctx, a.config.Storage.Retention)
		}()
	}

	if a.selfStats != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.selfStats.Run(a.ctx)
		}()
	}

	a.wg.Add(1)
	go a.reportLoop()

	return nil
}

// Stop shuts the agent down: sampler first so no new samples land, then the
// HTTP server, then the background loops.
func (a *Agent) Stop() error {
	a.logger.Info().Msg("Stopping ember agent")

	if a.driver != nil {
		a.driver.Stop()
	}

	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop HTTP server")
		}
	}

	a.cancel()
	a.wg.Wait()

	// Final report so samples collected since the last tick are not lost.
	a.reportOnce()

	a.close()

	a.logger.Info().Msg("Ember agent stopped")
	return nil
}

// Profile exposes the hotspot profile, mainly for embedding the agent in a
// host process that records its own samples.
func (a *Agent) Profile() *hotspot.Profile {
	return a.profile
}

// ServerAddr returns the bound HTTP address, or "" when the server is
// disabled.
func (a *Agent) ServerAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

// reportLoop renders, persists and resets the profile every report interval.
func (a *Agent) reportLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.Report.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.reportOnce()
		}
	}
}

// reportOnce runs a single report cycle against the current epoch.
func (a *Agent) reportOnce() {
	snap, err := a.profile.Snapshot(a.config.Report.Top)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to snapshot profile")
		return
	}

	if err := report.Render(a.sink, snap); err != nil {
		a.logger.Error().Err(err).Msg("Failed to write report")
	}

	if a.storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		id, stored, err := a.storage.StoreSnapshot(ctx, snap)
		cancel()
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to store snapshot")
		} else if stored {
			a.metrics.StoredSnapshots.Inc()
			a.logger.Debug().Str("snapshot_id", id).Msg("Snapshot stored")
		}
	}

	a.metrics.ReportsTotal.Inc()

	a.logger.Info().
		Int64("samples", snap.Total).
		Int("tracked", snap.Size).
		Int64("evictions", snap.Evictions).
		Msg("Report cycle complete")

	if !a.config.Profile.Cumulative {
		a.profile.Clear()
	}
}

// close releases resources the agent holds open.
func (a *Agent) close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.db != nil {
		safe.Close(a.db, a.logger, "failed to close snapshot database")
		a.db = nil
	}
	if a.sinkFile != nil {
		safe.Close(a.sinkFile, a.logger, "failed to close report output")
		a.sinkFile = nil
	}
}

// resolveSink maps the configured report output to a writer. "stdout" and
// "stderr" are the process streams; anything else is a file path opened for
// append.
func resolveSink(output string) (io.Writer, *os.File, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open report output %s: %w", output, err)
		}
		return f, f, nil
	}
}
