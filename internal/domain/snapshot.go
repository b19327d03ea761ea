package domain

import (
	"time"
)

// DailySummary is one archived day of aggregates, written by the retention
// sweeper when it rolls detailed counters out of the store.
type DailySummary struct {
	ID             int64     `json:"id" db:"id"`
	SummaryDate    time.Time `json:"summary_date" db:"summary_date"`
	TotalViews     int64     `json:"total_views" db:"total_views"`
	UniqueVisitors int64     `json:"unique_visitors" db:"unique_visitors"`
	BotFiltered    int64     `json:"bot_filtered" db:"bot_filtered"`
	LifetimeViews  int64     `json:"lifetime_views" db:"lifetime_views"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
