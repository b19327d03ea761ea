package service

import (
	"context"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// violationTTL bounds how long repeated rate-limit violations accumulate
// before the count resets
const violationTTL = 24 * time.Hour

// RateLimiter caps events per source identity using fixed wall-clock-aligned
// windows. State is one counter per identity per window, expiring with the
// window.
type RateLimiter struct {
	redisClient   *redis.Client
	logger        *logger.Logger
	limit         int64
	window        time.Duration
	denylistAfter int64
}

// NewRateLimiter creates a rate limiter with the given ceiling and window
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, limit int, window time.Duration, denylistAfter int) *RateLimiter {
	return &RateLimiter{
		redisClient:   redisClient,
		logger:        log,
		limit:         int64(limit),
		window:        window,
		denylistAfter: int64(denylistAfter),
	}
}

// Allow records one request for the identity and reports whether it is
// within the ceiling. Window boundaries are wall-clock aligned: the counter
// key embeds the window start, so state stays O(1) per identity.
func (rl *RateLimiter) Allow(ctx context.Context, identity string) (*domain.RateLimitInfo, error) {
	now := time.Now()
	windowStart := now.Truncate(rl.window)
	key := rl.redisClient.KeyBuilder.KeyRateLimit(identity, windowStart.Unix())

	count, err := rl.redisClient.Incr(ctx, key)
	if err != nil {
		return nil, err
	}

	// Expire the counter at the window boundary; set once on first request
	if count == 1 {
		if err := rl.redisClient.ExpireAt(ctx, key, windowStart.Add(rl.window)); err != nil {
			rl.logger.WithError(err).Warn("Failed to set rate limit window expiry")
		}
	}

	info := &domain.RateLimitInfo{
		Identity:     identity,
		RequestCount: count,
		Limit:        rl.limit,
		WindowStart:  windowStart,
		TTL:          rl.window,
		IsAllowed:    count <= rl.limit,
	}

	if !info.IsAllowed {
		rl.recordViolation(ctx, identity, count)
	}

	return info, nil
}

// recordViolation tallies ceiling breaches; identities breaching repeatedly
// land on the denylist consumed by the bot filter. One violation is counted
// per window, on the first request past the ceiling.
func (rl *RateLimiter) recordViolation(ctx context.Context, identity string, count int64) {
	if count != rl.limit+1 {
		return
	}

	key := rl.redisClient.KeyBuilder.KeyViolations(identity)
	violations, err := rl.redisClient.Incr(ctx, key)
	if err != nil {
		rl.logger.WithError(err).Warn("Failed to record rate limit violation")
		return
	}
	if violations == 1 {
		if err := rl.redisClient.Expire(ctx, key, violationTTL); err != nil {
			rl.logger.WithError(err).Warn("Failed to set violation counter expiry")
		}
	}

	if violations >= rl.denylistAfter {
		if _, err := rl.redisClient.SAdd(ctx, rl.redisClient.KeyBuilder.KeyDenylist(), identity); err != nil {
			rl.logger.WithError(err).Warn("Failed to add identity to denylist")
			return
		}
		rl.logger.WithFields(map[string]interface{}{
			"identity_prefix": identityPrefix(identity),
			"violations":      violations,
		}).Warn("Identity denylisted after repeated rate limit violations")
	}
}

// identityPrefix truncates an identity hash for logging
func identityPrefix(identity string) string {
	if len(identity) <= 8 {
		return identity
	}
	return identity[:8] + "..."
}
