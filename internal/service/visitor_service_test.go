package service

import (
	"context"
	"testing"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPipeline wires the full ingestion pipeline against one store
func newTestPipeline(t *testing.T, client *redis.Client, log *logger.Logger, rateLimit int) VisitorService {
	t.Helper()

	rl := NewRateLimiter(client, log, rateLimit, time.Minute, 3)
	bf := NewBotFilter(client, log, 1000, 10*time.Second)
	ut := NewUniquenessTracker(client, log, "test-salt")
	agg := NewAggregator(client, log, 7)

	return NewVisitorService(client, rl, bf, ut, agg, nil, log)
}

func TestVisitorService_RecordVisit_CountedThenRepeat(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 100)

	event := &domain.VisitEvent{
		SourceAddress: "203.0.113.10",
		UserAgent:     testUA,
		PageID:        "home",
	}

	result, err := svc.RecordVisit(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCounted, result.Outcome)
	assert.True(t, result.NewUnique)

	// Same address again today: views grow, uniques do not
	result, err = svc.RecordVisit(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRepeat, result.Outcome)
	assert.False(t, result.NewUnique)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalViews)
	assert.Equal(t, int64(1), stats.UniqueVisitors)
}

func TestVisitorService_RecordVisit_BotExcludedFromAggregates(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 100)

	result, err := svc.RecordVisit(ctx, &domain.VisitEvent{
		SourceAddress: "203.0.113.10",
		UserAgent:     "Googlebot/2.1",
		PageID:        "home",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBotFiltered, result.Outcome)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.BotFiltered)
	assert.Equal(t, int64(0), stats.TotalViews)
	assert.Equal(t, int64(0), stats.UniqueVisitors)
	assert.Equal(t, int64(0), stats.LifetimeViews)
}

func TestVisitorService_RecordVisit_RateLimited(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 2)

	event := &domain.VisitEvent{
		SourceAddress: "203.0.113.10",
		UserAgent:     testUA,
		PageID:        "home",
	}

	for i := 0; i < 2; i++ {
		result, err := svc.RecordVisit(ctx, event)
		require.NoError(t, err)
		assert.NotEqual(t, domain.OutcomeRateLimited, result.Outcome)
	}

	result, err := svc.RecordVisit(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRateLimited, result.Outcome)
	require.NotNil(t, result.RateLimit)
	assert.False(t, result.RateLimit.IsAllowed)

	// Rejected events leave the aggregates untouched
	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalViews)
}

func TestVisitorService_RecordVisit_FailsOpenOnStoreOutage(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 100)

	mr.Close()

	// The event is dropped, never surfaced as an error to the client
	result, err := svc.RecordVisit(ctx, &domain.VisitEvent{
		SourceAddress: "203.0.113.10",
		UserAgent:     testUA,
		PageID:        "home",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDropped, result.Outcome)
}

func TestVisitorService_RecordVisit_DefaultsTimestamp(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 100)

	event := &domain.VisitEvent{
		SourceAddress: "203.0.113.10",
		UserAgent:     testUA,
		PageID:        "home",
	}
	_, err := svc.RecordVisit(ctx, event)
	require.NoError(t, err)
	assert.False(t, event.Timestamp.IsZero())
}

func TestVisitorService_ResetDailyCounters(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 100)

	_, err := svc.RecordVisit(ctx, &domain.VisitEvent{
		SourceAddress: "203.0.113.10",
		UserAgent:     testUA,
		PageID:        "home",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResetDailyCounters(ctx))

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalViews)
	assert.Equal(t, int64(0), stats.UniqueVisitors)
	assert.Equal(t, int64(1), stats.LifetimeViews)
}

func TestVisitorService_StartWithoutArchive(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	svc := newTestPipeline(t, client, log, 100)

	// No archive configured: start is a no-op, not an error
	require.NoError(t, svc.Start(ctx))
}
