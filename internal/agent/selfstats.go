package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/emberprof/ember/internal/safe"
)

// SelfStats periodically logs the agent's own resource usage. With a bounded
// profile the RSS line should stay flat no matter how many distinct code
// units the sampled workload produces.
type SelfStats struct {
	logger   zerolog.Logger
	proc     *process.Process
	interval time.Duration
}

// NewSelfStats creates a self-stats reporter for the current process.
func NewSelfStats(logger zerolog.Logger, interval time.Duration) (*SelfStats, error) {
	pid, clamped := safe.IntToInt32(os.Getpid())
	if clamped {
		return nil, fmt.Errorf("pid %d out of range", os.Getpid())
	}

	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}

	if interval == 0 {
		interval = time.Minute
	}

	return &SelfStats{
		logger:   logger.With().Str("component", "selfstats").Logger(),
		proc:     proc,
		interval: interval,
	}, nil
}

// Run logs resource usage on the configured interval until ctx is cancelled.
func (s *SelfStats) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logOnce(ctx)
		}
	}
}

func (s *SelfStats) logOnce(ctx context.Context) {
	memInfo, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read process memory info")
		return
	}

	cpuPercent, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read process CPU usage")
		return
	}

	rss, clamped := safe.Uint64ToInt64(memInfo.RSS)
	if clamped {
		s.logger.Warn().Uint64("rss", memInfo.RSS).Msg("RSS exceeded int64 range, clamped")
	}

	s.logger.Debug().
		Int64("rss_bytes", rss).
		Float64("cpu_percent", cpuPercent).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("Agent resource usage")
}
