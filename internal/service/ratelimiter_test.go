package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	rl := NewRateLimiter(client, log, 3, time.Minute, 3)

	// The first three requests pass the ceiling
	for i := 1; i <= 3; i++ {
		info, err := rl.Allow(ctx, "identity-a")
		require.NoError(t, err)
		assert.True(t, info.IsAllowed)
		assert.Equal(t, int64(i), info.RequestCount)
		assert.Equal(t, int64(3), info.Limit)
	}

	// The fourth is rejected
	info, err := rl.Allow(ctx, "identity-a")
	require.NoError(t, err)
	assert.False(t, info.IsAllowed)
	assert.Equal(t, int64(4), info.RequestCount)
}

func TestRateLimiter_IndependentIdentities(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	rl := NewRateLimiter(client, log, 1, time.Minute, 3)

	info, err := rl.Allow(ctx, "identity-a")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)

	info, err = rl.Allow(ctx, "identity-a")
	require.NoError(t, err)
	assert.False(t, info.IsAllowed)

	// A different identity has its own window
	info, err = rl.Allow(ctx, "identity-b")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	rl := NewRateLimiter(client, log, 1, time.Minute, 3)

	info, err := rl.Allow(ctx, "identity-a")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)

	info, err = rl.Allow(ctx, "identity-a")
	require.NoError(t, err)
	assert.False(t, info.IsAllowed)

	// Past the window boundary the counter has expired; new requests count
	// into a fresh window key
	mr.FastForward(2 * time.Minute)

	info, err = rl.Allow(ctx, "identity-a")
	require.NoError(t, err)
	assert.True(t, info.IsAllowed)
}

func TestRateLimiter_WindowStartAligned(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	window := time.Minute
	rl := NewRateLimiter(client, log, 10, window, 3)

	info, err := rl.Allow(ctx, "identity-a")
	require.NoError(t, err)

	// The window start is wall-clock aligned, not request-anchored
	assert.Equal(t, info.WindowStart, info.WindowStart.Truncate(window))
	assert.Equal(t, window, info.TTL)
}

func TestRateLimiter_DenylistAfterRepeatedViolations(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	rl := NewRateLimiter(client, log, 1, time.Minute, 2)

	// Two windows with a violation each: the second lands the identity on
	// the denylist
	for w := 0; w < 2; w++ {
		_, err := rl.Allow(ctx, "abuser")
		require.NoError(t, err)
		info, err := rl.Allow(ctx, "abuser")
		require.NoError(t, err)
		assert.False(t, info.IsAllowed)

		mr.FastForward(2 * time.Minute)
	}

	denylisted, err := client.SIsMember(ctx, client.KeyBuilder.KeyDenylist(), "abuser")
	require.NoError(t, err)
	assert.True(t, denylisted)
}

func TestRateLimiter_SingleViolationPerWindow(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	rl := NewRateLimiter(client, log, 1, time.Minute, 5)

	// Hammering one window records exactly one violation
	for i := 0; i < 6; i++ {
		_, err := rl.Allow(ctx, "identity-a")
		require.NoError(t, err)
	}

	raw, err := client.Get(ctx, client.KeyBuilder.KeyViolations("identity-a"))
	require.NoError(t, err)
	assert.Equal(t, "1", raw)
}
