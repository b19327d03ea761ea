package repository

import (
	"context"
	"time"

	"visitor-counter/internal/domain"
)

// SummaryRepository defines the interface for the daily summary archive
type SummaryRepository interface {
	// UpsertDaily writes or replaces one day's summary row
	UpsertDaily(ctx context.Context, summary *domain.DailySummary) error

	// GetLatest retrieves the most recent archived summary
	GetLatest(ctx context.Context) (*domain.DailySummary, error)

	// GetByDate retrieves the summary for a specific date
	GetByDate(ctx context.Context, date time.Time) (*domain.DailySummary, error)

	// DeleteOlderThan removes summaries outside the retention window
	DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error)

	// Count returns the number of archived summaries
	Count(ctx context.Context) (int64, error)
}
