package sdk

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberprof/ember/internal/agent"
	"github.com/emberprof/ember/internal/config"
	"github.com/emberprof/ember/internal/hotspot"
	"github.com/emberprof/ember/internal/report"
)

// SDK represents the ember profiler instance embedded in an application.
type SDK struct {
	logger zerolog.Logger
	agent  *agent.Agent
	top    int
}

// Config contains SDK configuration options. Zero values fall back to the
// agent defaults (capacity 1024, 10s report interval, top 20, stdout).
type Config struct {
	// ServiceName is the name of the profiled service (required).
	ServiceName string

	// Capacity bounds the number of distinct code units tracked at once.
	Capacity int

	// ReportInterval is the report cycle period.
	ReportInterval time.Duration

	// Top is the number of ranked entries per report.
	Top int

	// Output is the report sink: "stdout", "stderr", or a file path.
	Output string

	// Cumulative keeps counts across report intervals instead of clearing.
	Cumulative bool

	// Listen enables the HTTP endpoint (ingest, report, metrics) on this
	// address when non-empty.
	Listen string

	// DisableSampler turns off the built-in runtime sampler. Samples then
	// come only from RecordSample and the HTTP ingest endpoint.
	DisableSampler bool

	// SampleInterval is the runtime sampler period.
	SampleInterval time.Duration

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger
}

// New creates an embedded profiler and starts it.
func New(cfg Config) (*SDK, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "ember-sdk").Str("service", cfg.ServiceName).Logger()

	// Zero means default; anything else, including a bad negative, goes
	// through so validation can reject it.
	agentCfg := config.Default()
	if cfg.Capacity != 0 {
		agentCfg.Profile.Capacity = cfg.Capacity
	}
	agentCfg.Profile.Cumulative = cfg.Cumulative
	if cfg.ReportInterval != 0 {
		agentCfg.Report.Interval = cfg.ReportInterval
	}
	if cfg.Top != 0 {
		agentCfg.Report.Top = cfg.Top
	}
	if cfg.Output != "" {
		agentCfg.Report.Output = cfg.Output
	}
	agentCfg.Server.Enabled = cfg.Listen != ""
	if cfg.Listen != "" {
		agentCfg.Server.Listen = cfg.Listen
	}
	agentCfg.Sampler.Enabled = !cfg.DisableSampler
	if cfg.SampleInterval != 0 {
		agentCfg.Sampler.Interval = cfg.SampleInterval
	}

	if err := agentCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SDK configuration: %w", err)
	}

	agentInstance, err := agent.New(agentCfg, logger)
	if err != nil {
		return nil, err
	}

	if err := agentInstance.Start(); err != nil {
		return nil, err
	}

	logger.Info().
		Int("capacity", agentCfg.Profile.Capacity).
		Dur("report_interval", agentCfg.Report.Interval).
		Bool("sampler", agentCfg.Sampler.Enabled).
		Msg("Ember SDK initialized")

	return &SDK{
		logger: logger,
		agent:  agentInstance,
		top:    agentCfg.Report.Top,
	}, nil
}

// Close shuts down the embedded profiler, flushing a final report.
func (s *SDK) Close() error {
	s.logger.Info().Msg("Shutting down ember SDK")
	return s.agent.Stop()
}

// RecordSample counts one execution sample for the given code unit. Use it
// to mark logical units the runtime sampler cannot see, such as job or
// handler names.
func (s *SDK) RecordSample(unitType, signature string) error {
	key, err := hotspot.NewKey(unitType, signature)
	if err != nil {
		return err
	}
	_, err = s.agent.Profile().AddSample(key)
	return err
}

// Report renders the current ranked table to w without waiting for the next
// report interval. The profile is not cleared.
func (s *SDK) Report(w io.Writer) error {
	snap, err := s.agent.Profile().Snapshot(s.top)
	if err != nil {
		return err
	}
	return report.Render(w, snap)
}

// Addr returns the HTTP endpoint address (for scraping or ingest).
// Returns empty string if no listen address was configured.
func (s *SDK) Addr() string {
	return s.agent.ServerAddr()
}
