package service

import (
	"context"
	"time"

	"visitor-counter/internal/domain"
)

// SettingsService defines the admin-tunable configuration operations
type SettingsService interface {
	// Get returns the current settings, falling back to configured defaults
	// when the store has no document (fail-open read path)
	Get(ctx context.Context) (*domain.Settings, error)

	// Update validates and persists new settings (fail-closed write path)
	Update(ctx context.Context, update *domain.SettingsUpdate, modifiedBy string) (*domain.Settings, error)
}

// VisitorService runs the ingestion pipeline and serves aggregate statistics
type VisitorService interface {
	// Start restores counters from the archive if the store is empty
	Start(ctx context.Context) error

	// RecordVisit pushes one event through rate-limit, bot-filter,
	// uniqueness and aggregation
	RecordVisit(ctx context.Context, event *domain.VisitEvent) (*domain.VisitResult, error)

	// GetStats retrieves today's visitor statistics
	GetStats(ctx context.Context) (*domain.VisitorStats, error)

	// GetPageStats retrieves per-page view counts for the tracked pages
	GetPageStats(ctx context.Context) ([]domain.PageStats, error)

	// GetHourlyStats retrieves today's 24 hour-bucket counts
	GetHourlyStats(ctx context.Context) ([]domain.HourlyStat, error)

	// ResetDailyCounters zeroes today's counters and unique set
	ResetDailyCounters(ctx context.Context) error
}

// DisplayService owns the published visitor number
type DisplayService interface {
	// Start begins the periodic update cycle
	Start(ctx context.Context) error

	// Stop shuts the updater down, letting an in-flight cycle finish
	Stop(ctx context.Context) error

	// GetDisplay returns the public display state with staleness marker
	GetDisplay(ctx context.Context) (*domain.DisplayResponse, error)

	// ForceUpdate runs one cycle immediately, outside the timer
	ForceUpdate(ctx context.Context) error

	// Status reports the last successful cycle and consecutive failures
	Status() (lastSuccess time.Time, consecutiveFailures int64)
}

// SweeperService enforces the retention policy on a daily schedule
type SweeperService interface {
	// Start schedules the daily sweep
	Start() error

	// Stop halts the schedule, waiting for a running sweep
	Stop(ctx context.Context) error

	// Sweep archives finished days and deletes expired detail records.
	// Running it twice in one day is a no-op the second time.
	Sweep(ctx context.Context) error
}
