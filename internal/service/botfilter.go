package service

import (
	"context"
	"strings"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// botSignatures are substrings matched against a lowercased user agent.
// curl/wget/python-requests cover the common scripted traffic.
var botSignatures = []string{
	"bot", "crawler", "spider", "scraper",
	"googlebot", "bingbot", "facebookexternalhit",
	"twitterbot", "linkedinbot", "whatsapp",
	"telegram", "curl", "wget", "python-requests",
}

// Bot classification reasons
const (
	BotReasonEmptyUA    = "empty_user_agent"
	BotReasonSignature  = "signature"
	BotReasonBurst      = "burst"
	BotReasonDenylisted = "denylisted"
)

// BotFilter classifies visit events as genuine or automated. The rules are
// independent and combined with OR; any match classifies the event as a bot.
type BotFilter struct {
	redisClient *redis.Client
	logger      *logger.Logger
	burstLimit  int64
	burstWindow time.Duration
}

// NewBotFilter creates a bot filter with the given burst threshold
func NewBotFilter(redisClient *redis.Client, log *logger.Logger, burstLimit int, burstWindow time.Duration) *BotFilter {
	return &BotFilter{
		redisClient: redisClient,
		logger:      log,
		burstLimit:  int64(burstLimit),
		burstWindow: burstWindow,
	}
}

// Classify evaluates one event. It returns whether the event is a bot and
// the matching rule. Store failures fail open: the event passes as genuine
// so real traffic is never blocked by an outage.
func (f *BotFilter) Classify(ctx context.Context, event *domain.VisitEvent, identity string) (bool, string) {
	if event.UserAgent == "" {
		return true, BotReasonEmptyUA
	}

	ua := strings.ToLower(event.UserAgent)
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true, BotReasonSignature
		}
	}

	denylisted, err := f.redisClient.SIsMember(ctx, f.redisClient.KeyBuilder.KeyDenylist(), identity)
	if err != nil {
		f.logger.WithError(err).Warn("Denylist check failed, passing event")
	} else if denylisted {
		return true, BotReasonDenylisted
	}

	if f.exceedsBurst(ctx, identity, event.Timestamp) {
		return true, BotReasonBurst
	}

	return false, ""
}

// exceedsBurst maintains a short fixed window per identity, tighter than the
// general rate limiter, to catch rapid-fire clients
func (f *BotFilter) exceedsBurst(ctx context.Context, identity string, now time.Time) bool {
	windowStart := now.Truncate(f.burstWindow)
	key := f.redisClient.KeyBuilder.KeyBurst(identity, windowStart.Unix())

	count, err := f.redisClient.Incr(ctx, key)
	if err != nil {
		f.logger.WithError(err).Warn("Burst check failed, passing event")
		return false
	}
	if count == 1 {
		if err := f.redisClient.ExpireAt(ctx, key, windowStart.Add(f.burstWindow)); err != nil {
			f.logger.WithError(err).Warn("Failed to set burst window expiry")
		}
	}

	return count > f.burstLimit
}
