package domain

import (
	"fmt"
	"time"
)

// VisitorStats aggregates the visitor-facing counters for one day plus the
// lifetime view total. Unique counts are estimates: identity is derived from
// network addresses, which NAT and dynamic addressing make approximate.
type VisitorStats struct {
	Date           string    `json:"date"`
	TotalViews     int64     `json:"total_views"`
	UniqueVisitors int64     `json:"unique_visitors"`
	BotFiltered    int64     `json:"bot_filtered"`
	LifetimeViews  int64     `json:"lifetime_views"`
	LastUpdated    time.Time `json:"last_updated"`
}

// PageStats represents view counts for one tracked page
type PageStats struct {
	Page     string `json:"page"`
	PageName string `json:"page_name"`
	Views    int64  `json:"views"`
}

// HourlyStat represents traffic for one hour bucket of the current day
type HourlyStat struct {
	Hour       int    `json:"hour"`
	Visits     int64  `json:"visits"`
	Period     string `json:"period"`
	PeriodName string `json:"period_name"`
}

// Day periods for hourly traffic classification
const (
	PeriodMorning   = "morning"
	PeriodAfternoon = "afternoon"
	PeriodEvening   = "evening"
	PeriodNight     = "night"
)

// HourPeriod classifies an hour of day into a traffic period
func HourPeriod(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 17:
		return PeriodAfternoon
	case hour >= 17 && hour < 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

// HourPeriodName returns the display name for a traffic period
func HourPeriodName(period string) string {
	switch period {
	case PeriodMorning:
		return "Morning"
	case PeriodAfternoon:
		return "Afternoon"
	case PeriodEvening:
		return "Evening"
	case PeriodNight:
		return "Night"
	default:
		return "Unknown"
	}
}

// FormatCount renders a counter with thousands separators for display
func FormatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

// DateKey formats a time as the store's date segment
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
