package domain

import (
	"time"
)

// DisplayState is the single public "current visitors" number. The updater
// overwrites the whole document each cycle; no other component writes it.
type DisplayState struct {
	CurrentCount  int64     `json:"current_count"`
	Mode          string    `json:"mode"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	NextUpdateAt  time.Time `json:"next_update_at"`
}

// DisplayResponse is the public read shape, including the staleness marker
// set when the updater is disabled or the state has outlived its cycle.
type DisplayResponse struct {
	CurrentCount    int64     `json:"current_count"`
	FormattedString string    `json:"formatted_string"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
	NextUpdateAt    time.Time `json:"next_update_at"`
	Stale           bool      `json:"stale"`
}
