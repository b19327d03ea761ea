package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// UniquenessTracker decides whether an event represents a new unique visitor
// within the rolling day window. Identity is a one-way hash of the raw
// address salted with the day bucket, so the same address cannot be
// correlated across days while staying deterministic within one.
type UniquenessTracker struct {
	redisClient *redis.Client
	logger      *logger.Logger
	salt        string
}

// NewUniquenessTracker creates a uniqueness tracker
func NewUniquenessTracker(redisClient *redis.Client, log *logger.Logger, salt string) *UniquenessTracker {
	return &UniquenessTracker{
		redisClient: redisClient,
		logger:      log,
		salt:        salt,
	}
}

// Identity derives the source identity for an address at a point in time
func (t *UniquenessTracker) Identity(sourceAddress string, at time.Time) string {
	day := domain.DateKey(at)
	hash := sha256.Sum256([]byte(sourceAddress + "|" + t.salt + "|" + day))
	return fmt.Sprintf("%x", hash[:16])
}

// Track adds the identity to the day's unique set. It returns true when the
// identity was not seen before today. The set expires at the day rollover.
func (t *UniquenessTracker) Track(ctx context.Context, identity string, at time.Time) (bool, error) {
	key := t.redisClient.KeyBuilder.KeyUniqueDaily(domain.DateKey(at))

	added, err := t.redisClient.SAdd(ctx, key, identity)
	if err != nil {
		return false, fmt.Errorf("failed to track uniqueness: %w", err)
	}

	if added == 1 {
		// First write of the day creates the set; expire it at midnight
		if err := t.redisClient.ExpireAt(ctx, key, endOfDay(at)); err != nil {
			t.logger.WithError(err).Warn("Failed to set uniqueness window expiry")
		}
	}

	return added == 1, nil
}

// Cardinality returns the day's unique visitor estimate
func (t *UniquenessTracker) Cardinality(ctx context.Context, at time.Time) (int64, error) {
	return t.redisClient.SCard(ctx, t.redisClient.KeyBuilder.KeyUniqueDaily(domain.DateKey(at)))
}

// endOfDay returns the next midnight after t, in t's location
func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
