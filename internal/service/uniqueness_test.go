package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniquenessTracker_Identity(t *testing.T) {
	_, client, log := setupTestStore(t)

	tracker := NewUniquenessTracker(client, log, "test-salt")

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	// Deterministic within a day
	a := tracker.Identity("203.0.113.10", now)
	b := tracker.Identity("203.0.113.10", now.Add(3*time.Hour))
	assert.Equal(t, a, b)

	// Different addresses diverge
	c := tracker.Identity("203.0.113.11", now)
	assert.NotEqual(t, a, c)

	// The day salt breaks cross-day correlation
	d := tracker.Identity("203.0.113.10", now.AddDate(0, 0, 1))
	assert.NotEqual(t, a, d)

	// The raw address never appears in the identity
	assert.NotContains(t, a, "203")
	assert.Len(t, a, 32)
}

func TestUniquenessTracker_IdentitySaltMatters(t *testing.T) {
	_, client, log := setupTestStore(t)

	now := time.Now()
	t1 := NewUniquenessTracker(client, log, "salt-one")
	t2 := NewUniquenessTracker(client, log, "salt-two")

	assert.NotEqual(t, t1.Identity("203.0.113.10", now), t2.Identity("203.0.113.10", now))
}

func TestUniquenessTracker_Track(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	tracker := NewUniquenessTracker(client, log, "test-salt")
	now := time.Now()
	identity := tracker.Identity("203.0.113.10", now)

	// First sight of the identity today
	newUnique, err := tracker.Track(ctx, identity, now)
	require.NoError(t, err)
	assert.True(t, newUnique)

	// Second sight is a repeat
	newUnique, err = tracker.Track(ctx, identity, now)
	require.NoError(t, err)
	assert.False(t, newUnique)

	card, err := tracker.Cardinality(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)

	// A second identity grows the estimate
	other := tracker.Identity("203.0.113.11", now)
	newUnique, err = tracker.Track(ctx, other, now)
	require.NoError(t, err)
	assert.True(t, newUnique)

	card, err = tracker.Cardinality(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)
}

func TestUniquenessTracker_SetExpiresAtRollover(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	tracker := NewUniquenessTracker(client, log, "test-salt")
	now := time.Now()
	identity := tracker.Identity("203.0.113.10", now)

	_, err := tracker.Track(ctx, identity, now)
	require.NoError(t, err)

	// Fast-forward past the day rollover: the set is gone
	mr.FastForward(25 * time.Hour)

	card, err := tracker.Cardinality(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), card)
}
