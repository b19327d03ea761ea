package domain

import (
	"time"
)

// VisitEvent represents a single reported page view. It is transient: the
// pipeline consumes it immediately and only hashed identity ever reaches the
// store.
type VisitEvent struct {
	SourceAddress string    `json:"-"`
	UserAgent     string    `json:"user_agent"`
	PageID        string    `json:"page_id"`
	Timestamp     time.Time `json:"timestamp"`
	RegionTag     string    `json:"region_tag,omitempty"`
}

// VisitOutcome classifies what the pipeline did with an event
type VisitOutcome string

const (
	OutcomeCounted     VisitOutcome = "counted"
	OutcomeRepeat      VisitOutcome = "repeat"
	OutcomeBotFiltered VisitOutcome = "bot_filtered"
	OutcomeRateLimited VisitOutcome = "rate_limited"
	OutcomeDropped     VisitOutcome = "dropped"
)

// VisitResult reports how an ingested event was handled
type VisitResult struct {
	Outcome   VisitOutcome   `json:"outcome"`
	NewUnique bool           `json:"new_unique"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// RateLimitInfo represents the state of one identity's fixed window
type RateLimitInfo struct {
	Identity     string        `json:"-"`
	RequestCount int64         `json:"request_count"`
	Limit        int64         `json:"limit"`
	WindowStart  time.Time     `json:"window_start"`
	TTL          time.Duration `json:"ttl"`
	IsAllowed    bool          `json:"is_allowed"`
}

// VisitDetail is the retained per-visit record: hashed identity only, capped
// ring per day, expires with the retention window.
type VisitDetail struct {
	IdentityHash string    `json:"identity_hash"`
	PageID       string    `json:"page_id"`
	DeviceType   string    `json:"device_type"`
	Browser      string    `json:"browser"`
	RegionTag    string    `json:"region_tag,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
