package service

import (
	"context"
	"fmt"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/internal/repository"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// visitorService runs the ingestion pipeline: rate limit, bot filter,
// uniqueness, aggregation. Each stage only touches its own key namespace;
// the store is the single serialization point.
type visitorService struct {
	redisClient *redis.Client
	rateLimiter *RateLimiter
	botFilter   *BotFilter
	uniqueness  *UniquenessTracker
	aggregator  *Aggregator
	summaryRepo repository.SummaryRepository
	logger      *logger.Logger
}

// NewVisitorService creates the ingestion pipeline service. summaryRepo may
// be nil when no archive database is configured.
func NewVisitorService(
	redisClient *redis.Client,
	rateLimiter *RateLimiter,
	botFilter *BotFilter,
	uniqueness *UniquenessTracker,
	aggregator *Aggregator,
	summaryRepo repository.SummaryRepository,
	log *logger.Logger,
) VisitorService {
	return &visitorService{
		redisClient: redisClient,
		rateLimiter: rateLimiter,
		botFilter:   botFilter,
		uniqueness:  uniqueness,
		aggregator:  aggregator,
		summaryRepo: summaryRepo,
		logger:      log,
	}
}

// Start restores the lifetime counter from the archive when the store is
// empty, so a flushed store does not reset the public total to zero.
func (s *visitorService) Start(ctx context.Context) error {
	if s.summaryRepo == nil {
		s.logger.Info("No archive configured, skipping counter restore")
		return nil
	}

	lifetimeKey := s.redisClient.KeyBuilder.KeyAggLifetime()
	exists, err := s.redisClient.Exists(ctx, lifetimeKey)
	if err != nil {
		return fmt.Errorf("failed to check lifetime counter: %w", err)
	}
	if exists > 0 {
		s.logger.Info("Store already contains visitor counters, skipping restore")
		return nil
	}

	latest, err := s.summaryRepo.GetLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest summary: %w", err)
	}
	if latest == nil {
		s.logger.Info("No archived summary found, starting with zero counters")
		return nil
	}

	if err := s.redisClient.Set(ctx, lifetimeKey, latest.LifetimeViews, 0); err != nil {
		return fmt.Errorf("failed to restore lifetime counter: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"lifetime_views": latest.LifetimeViews,
		"summary_date":   domain.DateKey(latest.SummaryDate),
	}).Info("Restored lifetime counter from archive")

	return nil
}

// RecordVisit pushes one event through the pipeline. Store failures on this
// path fail open: the event is dropped and logged, never surfaced to the
// reporting client as an error.
func (s *visitorService) RecordVisit(ctx context.Context, event *domain.VisitEvent) (*domain.VisitResult, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	identity := s.uniqueness.Identity(event.SourceAddress, event.Timestamp)

	rateLimit, err := s.rateLimiter.Allow(ctx, identity)
	if err != nil {
		s.logger.WithError(err).Warn("Rate limit check failed, dropping event")
		return &domain.VisitResult{Outcome: domain.OutcomeDropped}, nil
	}
	if !rateLimit.IsAllowed {
		s.logger.WithFields(map[string]interface{}{
			"identity_prefix": identityPrefix(identity),
			"request_count":   rateLimit.RequestCount,
		}).Debug("Event rate limited")
		return &domain.VisitResult{Outcome: domain.OutcomeRateLimited, RateLimit: rateLimit}, nil
	}

	if isBot, reason := s.botFilter.Classify(ctx, event, identity); isBot {
		if err := s.aggregator.RecordBot(ctx, event.Timestamp); err != nil {
			s.logger.WithError(err).Warn("Failed to tally bot event")
		}
		s.logger.WithFields(map[string]interface{}{
			"reason": reason,
			"page":   event.PageID,
		}).Debug("Event classified as bot")
		return &domain.VisitResult{Outcome: domain.OutcomeBotFiltered, RateLimit: rateLimit}, nil
	}

	newUnique, err := s.uniqueness.Track(ctx, identity, event.Timestamp)
	if err != nil {
		s.logger.WithError(err).Warn("Uniqueness tracking failed, dropping event")
		return &domain.VisitResult{Outcome: domain.OutcomeDropped, RateLimit: rateLimit}, nil
	}

	if err := s.aggregator.RecordVisit(ctx, event, identity, newUnique); err != nil {
		s.logger.WithError(err).Warn("Aggregation failed, dropping event")
		return &domain.VisitResult{Outcome: domain.OutcomeDropped, RateLimit: rateLimit}, nil
	}

	outcome := domain.OutcomeRepeat
	if newUnique {
		outcome = domain.OutcomeCounted
	}

	return &domain.VisitResult{
		Outcome:   outcome,
		NewUnique: newUnique,
		RateLimit: rateLimit,
	}, nil
}

// GetStats retrieves today's visitor statistics
func (s *visitorService) GetStats(ctx context.Context) (*domain.VisitorStats, error) {
	return s.aggregator.StatsFor(ctx, time.Now())
}

// GetPageStats retrieves per-page view counts for the tracked pages
func (s *visitorService) GetPageStats(ctx context.Context) ([]domain.PageStats, error) {
	return s.aggregator.PageStatsFor(ctx, time.Now())
}

// GetHourlyStats retrieves today's 24 hour-bucket counts
func (s *visitorService) GetHourlyStats(ctx context.Context) ([]domain.HourlyStat, error) {
	return s.aggregator.HourlyStatsFor(ctx, time.Now())
}

// ResetDailyCounters zeroes today's counters and unique set. This is the
// manual admin path; the scheduled rollover relies on dated keys and TTLs.
func (s *visitorService) ResetDailyCounters(ctx context.Context) error {
	if err := s.aggregator.ResetDay(ctx, time.Now()); err != nil {
		return err
	}
	s.logger.Info("Daily counters reset")
	return nil
}
