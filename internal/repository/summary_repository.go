package repository

import (
	"context"
	"fmt"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/database"

	"github.com/jackc/pgx/v5"
)

// summaryRepository persists rolled-up daily aggregates in PostgreSQL
type summaryRepository struct {
	db *database.PostgresDB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *database.PostgresDB) SummaryRepository {
	return &summaryRepository{
		db: db,
	}
}

// UpsertDaily writes or replaces one day's summary row
func (r *summaryRepository) UpsertDaily(ctx context.Context, summary *domain.DailySummary) error {
	query := `
		INSERT INTO daily_visit_summaries (summary_date, total_views, unique_visitors, bot_filtered, lifetime_views, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (summary_date) DO UPDATE SET
			total_views = EXCLUDED.total_views,
			unique_visitors = EXCLUDED.unique_visitors,
			bot_filtered = EXCLUDED.bot_filtered,
			lifetime_views = EXCLUDED.lifetime_views,
			created_at = EXCLUDED.created_at
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		summary.SummaryDate,
		summary.TotalViews,
		summary.UniqueVisitors,
		summary.BotFiltered,
		summary.LifetimeViews,
		summary.CreatedAt,
	).Scan(&summary.ID, &summary.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent archived summary
func (r *summaryRepository) GetLatest(ctx context.Context) (*domain.DailySummary, error) {
	query := `
		SELECT id, summary_date, total_views, unique_visitors, bot_filtered, lifetime_views, created_at
		FROM daily_visit_summaries
		ORDER BY summary_date DESC
		LIMIT 1
	`

	summary := &domain.DailySummary{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&summary.ID,
		&summary.SummaryDate,
		&summary.TotalViews,
		&summary.UniqueVisitors,
		&summary.BotFiltered,
		&summary.LifetimeViews,
		&summary.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			// No summaries exist yet, return nil without error
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest summary: %w", err)
	}

	return summary, nil
}

// GetByDate retrieves the summary for a specific date
func (r *summaryRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailySummary, error) {
	query := `
		SELECT id, summary_date, total_views, unique_visitors, bot_filtered, lifetime_views, created_at
		FROM daily_visit_summaries
		WHERE summary_date = $1
	`

	summary := &domain.DailySummary{}
	err := r.db.Pool.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(
		&summary.ID,
		&summary.SummaryDate,
		&summary.TotalViews,
		&summary.UniqueVisitors,
		&summary.BotFiltered,
		&summary.LifetimeViews,
		&summary.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get summary by date: %w", err)
	}

	return summary, nil
}

// DeleteOlderThan removes summaries outside the retention window
func (r *summaryRepository) DeleteOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	query := `
		DELETE FROM daily_visit_summaries
		WHERE summary_date < $1
	`

	cutoffDate := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	result, err := r.db.Pool.Exec(ctx, query, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old summaries: %w", err)
	}

	return result.RowsAffected(), nil
}

// Count returns the number of archived summaries
func (r *summaryRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM daily_visit_summaries`

	var count int64
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}

	return count, nil
}
