package service

import (
	"context"
	"encoding/json"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/errors"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"

	"github.com/go-playground/validator/v10"
)

// fallbackDefaults replaces configured defaults that violate the settings
// invariants. Every document served by Get must satisfy min < max, or the
// simulated draw downstream panics.
var fallbackDefaults = domain.Settings{
	MinVisitors:           800,
	MaxVisitors:           2500,
	UpdateIntervalSeconds: 30,
	Enabled:               true,
	DisplayMode:           domain.DisplayModeSimulated,
}

// settingsService stores the admin-tunable configuration as a single JSON
// document in the counter store. Reads fail open to the configured defaults;
// writes fail closed.
type settingsService struct {
	redisClient *redis.Client
	logger      *logger.Logger
	defaults    domain.Settings
}

// NewSettingsService creates a settings service with the given defaults.
// Defaults that fail validation (misconfigured environment bounds) are
// replaced with the built-in ones rather than served as-is.
func NewSettingsService(redisClient *redis.Client, log *logger.Logger, defaults domain.Settings) SettingsService {
	if err := defaults.Validate(); err != nil {
		log.WithError(err).Warn("Configured defaults violate settings invariants, using built-in defaults")
		defaults = fallbackDefaults
	}
	return &settingsService{
		redisClient: redisClient,
		logger:      log,
		defaults:    defaults,
	}
}

// Get returns the current settings. A missing document, a store failure or a
// corrupt document all fall back to defaults so the public read path never
// breaks on configuration.
func (s *settingsService) Get(ctx context.Context) (*domain.Settings, error) {
	raw, err := s.redisClient.Get(ctx, s.redisClient.KeyBuilder.KeySettings())
	if err != nil {
		if !redis.IsNil(err) {
			s.logger.WithError(err).Warn("Settings read failed, serving defaults")
		}
		defaults := s.defaults
		return &defaults, nil
	}

	var settings domain.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.WithError(err).Warn("Corrupt settings document, serving defaults")
		defaults := s.defaults
		return &defaults, nil
	}

	if err := settings.Validate(); err != nil {
		s.logger.WithError(err).Warn("Stored settings violate invariants, serving defaults")
		defaults := s.defaults
		return &defaults, nil
	}

	return &settings, nil
}

// Update validates and persists new settings. Validation failures reject the
// write with no state change; store failures surface as errors (fail-closed).
func (s *settingsService) Update(ctx context.Context, update *domain.SettingsUpdate, modifiedBy string) (*domain.Settings, error) {
	if err := update.Validate(); err != nil {
		return nil, errors.NewValidationError("Invalid settings", validationDetails(err))
	}

	settings := domain.Settings{
		MinVisitors:           update.MinVisitors,
		MaxVisitors:           update.MaxVisitors,
		UpdateIntervalSeconds: update.UpdateIntervalSeconds,
		Enabled:               update.Enabled,
		DisplayMode:           update.DisplayMode,
		ModifiedBy:            modifiedBy,
		ModifiedAt:            time.Now().UTC(),
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, errors.NewInternalError("Failed to encode settings", err)
	}

	// Settings never expire; they are overwritten wholesale by the next write
	if err := s.redisClient.Set(ctx, s.redisClient.KeyBuilder.KeySettings(), payload, 0); err != nil {
		return nil, errors.NewStoreUnavailableError("Failed to persist settings", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"min_visitors":    settings.MinVisitors,
		"max_visitors":    settings.MaxVisitors,
		"update_interval": settings.UpdateIntervalSeconds,
		"enabled":         settings.Enabled,
		"display_mode":    settings.Mode(),
		"modified_by":     modifiedBy,
	}).Info("Settings updated")

	return &settings, nil
}

// validationDetails flattens validator errors into the error response shape
func validationDetails(err error) map[string]interface{} {
	details := make(map[string]interface{})
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}
