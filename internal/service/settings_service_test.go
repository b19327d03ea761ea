package service

import (
	"context"
	"errors"
	"testing"

	"visitor-counter/internal/domain"
	apperrors "visitor-counter/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = domain.Settings{
	MinVisitors:           800,
	MaxVisitors:           2500,
	UpdateIntervalSeconds: 30,
	Enabled:               true,
	DisplayMode:           domain.DisplayModeSimulated,
}

func TestSettingsService_GetDefaults(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	// No document stored yet: defaults are served
	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800, settings.MinVisitors)
	assert.Equal(t, 2500, settings.MaxVisitors)
	assert.True(t, settings.Enabled)
}

func TestSettingsService_InvalidDefaultsReplaced(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	// Inverted environment bounds must never reach the updater
	svc := NewSettingsService(client, log, domain.Settings{
		MinVisitors:           200,
		MaxVisitors:           100,
		UpdateIntervalSeconds: 30,
		Enabled:               true,
	})

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, settings.Validate())
	assert.Equal(t, 800, settings.MinVisitors)
	assert.Equal(t, 2500, settings.MaxVisitors)
}

func TestSettingsService_UpdateRoundTrip(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	updated, err := svc.Update(ctx, &domain.SettingsUpdate{
		MinVisitors:           1000,
		MaxVisitors:           3000,
		UpdateIntervalSeconds: 60,
		Enabled:               true,
		DisplayMode:           domain.DisplayModeDerived,
	}, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", updated.ModifiedBy)
	assert.False(t, updated.ModifiedAt.IsZero())

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, settings.MinVisitors)
	assert.Equal(t, 3000, settings.MaxVisitors)
	assert.Equal(t, 60, settings.UpdateIntervalSeconds)
	assert.Equal(t, domain.DisplayModeDerived, settings.Mode())
}

func TestSettingsService_UpdateValidation(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	tests := []struct {
		name   string
		update domain.SettingsUpdate
	}{
		{
			name: "Min above max",
			update: domain.SettingsUpdate{
				MinVisitors:           3000,
				MaxVisitors:           1000,
				UpdateIntervalSeconds: 30,
			},
		},
		{
			name: "Min equal to max",
			update: domain.SettingsUpdate{
				MinVisitors:           1000,
				MaxVisitors:           1000,
				UpdateIntervalSeconds: 30,
			},
		},
		{
			name: "Interval below range",
			update: domain.SettingsUpdate{
				MinVisitors:           800,
				MaxVisitors:           2500,
				UpdateIntervalSeconds: 5,
			},
		},
		{
			name: "Interval above range",
			update: domain.SettingsUpdate{
				MinVisitors:           800,
				MaxVisitors:           2500,
				UpdateIntervalSeconds: 600,
			},
		},
		{
			name: "Unknown display mode",
			update: domain.SettingsUpdate{
				MinVisitors:           800,
				MaxVisitors:           2500,
				UpdateIntervalSeconds: 30,
				DisplayMode:           "random",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, &tt.update, "admin")
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)

			// A rejected write leaves the stored settings untouched
			settings, getErr := svc.Get(ctx)
			require.NoError(t, getErr)
			assert.Equal(t, testDefaults.MinVisitors, settings.MinVisitors)
		})
	}
}

func TestSettingsService_UpdateFailsClosedOnStoreOutage(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	mr.Close()

	_, err := svc.Update(ctx, &domain.SettingsUpdate{
		MinVisitors:           1000,
		MaxVisitors:           3000,
		UpdateIntervalSeconds: 60,
		Enabled:               true,
	}, "admin")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrorTypeStoreUnavailable, appErr.Type)
}

func TestSettingsService_GetFailsOpenOnCorruptDocument(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	mr.Set(client.KeyBuilder.KeySettings(), "not-json{")

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDefaults.MinVisitors, settings.MinVisitors)
}

func TestSettingsService_GetFailsOpenOnInvalidDocument(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	// Syntactically valid but violating the min<max invariant
	mr.Set(client.KeyBuilder.KeySettings(), `{"min_visitors":500,"max_visitors":100,"update_interval_seconds":30,"enabled":true}`)

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDefaults.MinVisitors, settings.MinVisitors)
	assert.Equal(t, testDefaults.MaxVisitors, settings.MaxVisitors)
}

func TestSettingsService_GetFailsOpenOnStoreOutage(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := NewSettingsService(client, log, testDefaults)

	mr.Close()

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDefaults.MinVisitors, settings.MinVisitors)
}
