package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// staleGrace is how far past next_update_at the published value may run
// before reads mark it stale
const staleGrace = 5 * time.Second

// displayService produces the single public visitor number every cycle,
// either simulated within the admin bounds or derived from real aggregate
// throughput. One instance per deployment; overlapping ticks coalesce.
type displayService struct {
	redisClient *redis.Client
	settings    SettingsService
	aggregator  *Aggregator
	uniqueness  *UniquenessTracker
	logger      *logger.Logger

	stop      chan struct{}
	done      chan struct{}
	mu        sync.RWMutex
	isRunning bool

	// inFlight guards against overlapping Computing phases; a tick firing
	// while a cycle runs is skipped, not queued
	inFlight atomic.Bool

	lastMu      sync.RWMutex
	last        *domain.DisplayState
	lastSuccess atomic.Int64
	failures    atomic.Int64
}

// NewDisplayService creates the display-value updater
func NewDisplayService(redisClient *redis.Client, settings SettingsService, aggregator *Aggregator, uniqueness *UniquenessTracker, log *logger.Logger) DisplayService {
	return &displayService{
		redisClient: redisClient,
		settings:    settings,
		aggregator:  aggregator,
		uniqueness:  uniqueness,
		logger:      log,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start runs one cycle immediately and begins the periodic loop
func (s *displayService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.logger.Info("Starting display updater")

	if err := s.runCycle(ctx); err != nil {
		s.logger.WithError(err).Warn("Initial display cycle failed, will retry on schedule")
	}

	go s.updateLoop(ctx)

	s.isRunning = true
	return nil
}

// Stop shuts the update loop down, letting an in-flight cycle finish
func (s *displayService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.logger.Info("Stopping display updater")
	close(s.stop)

	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("Display updater stop timed out")
	}

	s.isRunning = false
	return nil
}

// updateLoop re-reads the interval from settings each iteration so admin
// changes take effect without a restart
func (s *displayService) updateLoop(ctx context.Context) {
	defer close(s.done)

	for {
		interval := s.currentInterval(ctx)
		timer := time.NewTimer(interval)

		select {
		case <-timer.C:
			if err := s.runCycle(ctx); err != nil {
				s.logger.WithError(err).Error("Display cycle failed")
			}
		case <-s.stop:
			timer.Stop()
			s.logger.Debug("Display update loop stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("Display update loop cancelled")
			return
		}
	}
}

// runCycle computes and publishes one display value. The in-flight flag
// collapses overlapping triggers into a single Computing phase.
func (s *displayService) runCycle(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("Display cycle already in flight, skipping trigger")
		return nil
	}
	defer s.inFlight.Store(false)

	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.failures.Add(1)
		return fmt.Errorf("failed to read settings: %w", err)
	}

	if !settings.Enabled {
		// Leave the last published value in place; reads mark it stale
		s.logger.Debug("Display updater disabled, keeping last value")
		return nil
	}

	count, err := s.computeCount(ctx, settings)
	if err != nil {
		s.failures.Add(1)
		return err
	}

	now := time.Now().UTC()
	state := &domain.DisplayState{
		CurrentCount:  count,
		Mode:          settings.Mode(),
		LastUpdatedAt: now,
		NextUpdateAt:  now.Add(settings.Interval()),
	}

	payload, err := json.Marshal(state)
	if err != nil {
		s.failures.Add(1)
		return fmt.Errorf("failed to encode display state: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.redisClient.KeyBuilder.KeyDisplay(), payload, 0); err != nil {
		s.failures.Add(1)
		return fmt.Errorf("failed to publish display state: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.redisClient.KeyBuilder.KeyUpdaterStatus(), now.Unix(), 0); err != nil {
		s.logger.WithError(err).Warn("Failed to record updater status")
	}

	s.lastMu.Lock()
	s.last = state
	s.lastMu.Unlock()
	s.lastSuccess.Store(now.Unix())
	s.failures.Store(0)

	s.logger.WithFields(map[string]interface{}{
		"count": count,
		"mode":  state.Mode,
	}).Debug("Display value published")

	return nil
}

// computeCount picks the value for this cycle according to the strategy
func (s *displayService) computeCount(ctx context.Context, settings *domain.Settings) (int64, error) {
	min := int64(settings.MinVisitors)
	max := int64(settings.MaxVisitors)

	if settings.Mode() == domain.DisplayModeSimulated {
		// Independent uniform draws; no memory of the previous value
		return min + rand.Int63n(max-min+1), nil
	}

	return s.deriveCount(ctx, min, max)
}

// deriveCount smooths recent real throughput into a display value. The
// signal is current-hour views plus the daily unique estimate; the previous
// published value anchors an exponential smoothing so the number does not
// jump between cycles. The result is clamped to the admin bounds for
// display consistency.
func (s *displayService) deriveCount(ctx context.Context, min, max int64) (int64, error) {
	now := time.Now()

	hourViews, err := s.aggregator.CurrentHourViews(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to read hourly throughput: %w", err)
	}
	uniques, err := s.uniqueness.Cardinality(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to read unique estimate: %w", err)
	}

	raw := hourViews + uniques

	s.lastMu.RLock()
	prev := int64(0)
	if s.last != nil {
		prev = s.last.CurrentCount
	}
	s.lastMu.RUnlock()

	smoothed := raw
	if prev > 0 {
		smoothed = prev + (raw-prev)/3
	}

	if smoothed < min {
		smoothed = min
	}
	if smoothed > max {
		smoothed = max
	}
	return smoothed, nil
}

// GetDisplay returns the public display state. Store failures serve the last
// in-process copy marked stale rather than an error.
func (s *displayService) GetDisplay(ctx context.Context) (*domain.DisplayResponse, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		settings = nil
	}

	state := s.readState(ctx)
	if state == nil {
		return nil, fmt.Errorf("no display value published yet")
	}

	stale := time.Now().After(state.NextUpdateAt.Add(staleGrace))
	if settings != nil && !settings.Enabled {
		stale = true
	}

	return &domain.DisplayResponse{
		CurrentCount:    state.CurrentCount,
		FormattedString: domain.FormatCount(state.CurrentCount),
		LastUpdatedAt:   state.LastUpdatedAt,
		NextUpdateAt:    state.NextUpdateAt,
		Stale:           stale,
	}, nil
}

// readState prefers the store but falls back to the in-process copy
func (s *displayService) readState(ctx context.Context) *domain.DisplayState {
	raw, err := s.redisClient.Get(ctx, s.redisClient.KeyBuilder.KeyDisplay())
	if err == nil {
		var state domain.DisplayState
		if jsonErr := json.Unmarshal([]byte(raw), &state); jsonErr == nil {
			return &state
		}
		s.logger.Warn("Corrupt display document, serving last known value")
	} else if !redis.IsNil(err) {
		s.logger.WithError(err).Warn("Display read failed, serving last known value")
	}

	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// ForceUpdate runs one cycle immediately, outside the timer
func (s *displayService) ForceUpdate(ctx context.Context) error {
	return s.runCycle(ctx)
}

// Status reports the last successful cycle and consecutive failure count
func (s *displayService) Status() (time.Time, int64) {
	var lastSuccess time.Time
	if ts := s.lastSuccess.Load(); ts > 0 {
		lastSuccess = time.Unix(ts, 0).UTC()
	}
	return lastSuccess, s.failures.Load()
}

// currentInterval reads the configured interval, defaulting on failure
func (s *displayService) currentInterval(ctx context.Context) time.Duration {
	settings, err := s.settings.Get(ctx)
	if err != nil || settings.UpdateIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return settings.Interval()
}
