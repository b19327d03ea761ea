package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Display update strategies
const (
	DisplayModeSimulated = "simulated"
	DisplayModeDerived   = "derived"
)

// Interval bounds the admin API accepts for the updater cycle
const (
	MinUpdateIntervalSeconds = 10
	MaxUpdateIntervalSeconds = 300
)

var validate = validator.New()

// Settings holds the admin-tunable counter configuration. It lives as a
// single JSON document in the counter store and is read by the updater on
// every cycle.
type Settings struct {
	MinVisitors           int       `json:"min_visitors" validate:"required,gt=0"`
	MaxVisitors           int       `json:"max_visitors" validate:"required,gtfield=MinVisitors"`
	UpdateIntervalSeconds int       `json:"update_interval_seconds" validate:"required,min=10,max=300"`
	Enabled               bool      `json:"enabled"`
	DisplayMode           string    `json:"display_mode" validate:"omitempty,oneof=simulated derived"`
	ModifiedBy            string    `json:"modified_by,omitempty"`
	ModifiedAt            time.Time `json:"modified_at,omitempty"`
}

// SettingsUpdate is the admin write payload
type SettingsUpdate struct {
	MinVisitors           int    `json:"min_visitors" validate:"required,gt=0"`
	MaxVisitors           int    `json:"max_visitors" validate:"required,gtfield=MinVisitors"`
	UpdateIntervalSeconds int    `json:"update_interval_seconds" validate:"required,min=10,max=300"`
	Enabled               bool   `json:"enabled"`
	DisplayMode           string `json:"display_mode" validate:"omitempty,oneof=simulated derived"`
}

// Validate checks the settings invariants (0 < min < max, interval in range)
func (s *SettingsUpdate) Validate() error {
	return validate.Struct(s)
}

// Validate checks a stored settings document before serving it
func (s *Settings) Validate() error {
	return validate.Struct(s)
}

// Interval returns the update interval as a duration
func (s *Settings) Interval() time.Duration {
	return time.Duration(s.UpdateIntervalSeconds) * time.Second
}

// Mode returns the configured display mode, defaulting to simulated
func (s *Settings) Mode() string {
	if s.DisplayMode == DisplayModeDerived {
		return DisplayModeDerived
	}
	return DisplayModeSimulated
}
