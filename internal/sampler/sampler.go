// Package sampler drives sample ingestion: a Source resolves the code units
// executing at an instant, and a Driver polls it on a fixed interval and
// records every resolved key in the hotspot profile. The profile itself
// never depends on how samples are resolved.
package sampler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/emberprof/ember/internal/hotspot"
)

// Source resolves the code units observed executing at the instant of the
// call. Implementations are polled serially by their driver.
type Source interface {
	Sample(ctx context.Context) ([]hotspot.Key, error)
}

// Config holds sampler driver configuration.
type Config struct {
	Interval time.Duration // Polling interval (default: 20ms)
}

// Driver periodically polls a Source and feeds the resolved keys into a
// profile. Resolution failures are logged and skipped; sampling is lossy by
// nature and the loop must keep running.
type Driver struct {
	profile *hotspot.Profile
	source  Source
	logger  zerolog.Logger
	config  Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dropped atomic.Int64
}

// NewDriver creates a sampler driver feeding profile from source.
func NewDriver(
	parentCtx context.Context,
	profile *hotspot.Profile,
	source Source,
	logger zerolog.Logger,
	config Config,
) (*Driver, error) {
	if parentCtx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if profile == nil {
		return nil, fmt.Errorf("profile is required")
	}
	if source == nil {
		return nil, fmt.Errorf("sample source is required")
	}

	if config.Interval == 0 {
		config.Interval = 20 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(parentCtx)

	return &Driver{
		profile: profile,
		source:  source,
		logger:  logger.With().Str("component", "sampler").Logger(),
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the sampling loop.
func (d *Driver) Start() {
	d.logger.Info().
		Dur("interval", d.config.Interval).
		Msg("Starting sampler")

	d.wg.Add(1)
	go d.run()
}

// Stop stops the sampling loop and waits for it to exit.
func (d *Driver) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info().
		Int64("dropped", d.dropped.Load()).
		Msg("Sampler stopped")
}

// Dropped returns how many resolved keys the profile rejected as invalid.
func (d *Driver) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Driver) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.collect()
		}
	}
}

// collect polls the source once and records every resolved key.
func (d *Driver) collect() {
	keys, err := d.source.Sample(d.ctx)
	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		d.logger.Warn().Err(err).Msg("Failed to resolve samples")
		return
	}

	for _, key := range keys {
		if _, err := d.profile.AddSample(key); err != nil {
			d.dropped.Add(1)
			d.logger.Debug().Err(err).Msg("Dropped invalid sample key")
		}
	}
}
