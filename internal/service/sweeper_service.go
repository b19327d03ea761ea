package service

import (
	"context"
	"fmt"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/internal/repository"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"

	"github.com/robfig/cron/v3"
)

// sweepLookbackDays is how many days past the retention cutoff the sweeper
// still issues deletes for, covering keys whose TTL failed to apply
const sweepLookbackDays = 3

// sweeperService enforces the retention policy: it archives finished days
// into the summary table and deletes detailed structures past the retention
// window. The uniqueness sets and dated counters already self-expire via
// TTL; the sweep covers whatever slipped through and the archive rollup.
type sweeperService struct {
	redisClient   *redis.Client
	aggregator    *Aggregator
	summaryRepo   repository.SummaryRepository
	logger        *logger.Logger
	cron          *cron.Cron
	schedule      string
	retentionDays int
}

// NewSweeperService creates the retention sweeper. summaryRepo may be nil
// when no archive database is configured; the sweep then only deletes.
func NewSweeperService(redisClient *redis.Client, aggregator *Aggregator, summaryRepo repository.SummaryRepository, log *logger.Logger, schedule string, retentionDays int) SweeperService {
	return &sweeperService{
		redisClient:   redisClient,
		aggregator:    aggregator,
		summaryRepo:   summaryRepo,
		logger:        log,
		cron:          cron.New(),
		schedule:      schedule,
		retentionDays: retentionDays,
	}
}

// Start schedules the daily sweep
func (s *sweeperService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("Retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Retention sweeper started")
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish
func (s *sweeperService) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("Retention sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("Retention sweeper stop timed out")
	}
	return nil
}

// Sweep archives yesterday's aggregates and deletes structures past the
// retention window. Every step tolerates already-deleted keys and
// already-written rows, so a second run in the same day is a no-op.
func (s *sweeperService) Sweep(ctx context.Context) error {
	now := time.Now()

	if err := s.archiveDay(ctx, now.AddDate(0, 0, -1)); err != nil {
		// Archive failure must not block deletion of expired data
		s.logger.WithError(err).Warn("Failed to archive yesterday's aggregates")
	}

	var firstErr error
	for i := 0; i < sweepLookbackDays; i++ {
		day := now.AddDate(0, 0, -(s.retentionDays + 1 + i))
		if err := s.aggregator.DeleteDay(ctx, day); err != nil {
			s.logger.WithError(err).WithField("date", domain.DateKey(day)).Warn("Failed to delete expired day")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if s.summaryRepo != nil {
		deleted, err := s.summaryRepo.DeleteOlderThan(ctx, s.retentionDays)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to prune summary archive")
			if firstErr == nil {
				firstErr = err
			}
		} else if deleted > 0 {
			s.logger.WithField("rows", deleted).Info("Pruned summary archive")
		}
	}

	s.logger.Info("Retention sweep completed")
	return firstErr
}

// archiveDay rolls one finished day's counters into a summary row
func (s *sweeperService) archiveDay(ctx context.Context, day time.Time) error {
	if s.summaryRepo == nil {
		return nil
	}

	stats, err := s.aggregator.StatsFor(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to read aggregates for %s: %w", domain.DateKey(day), err)
	}

	uniques, err := s.redisClient.SCard(ctx, s.redisClient.KeyBuilder.KeyUniqueDaily(domain.DateKey(day)))
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read unique set cardinality for archive")
		uniques = stats.UniqueVisitors
	}

	summary := &domain.DailySummary{
		SummaryDate:    day.Truncate(24 * time.Hour),
		TotalViews:     stats.TotalViews,
		UniqueVisitors: maxInt64(uniques, stats.UniqueVisitors),
		BotFiltered:    stats.BotFiltered,
		LifetimeViews:  stats.LifetimeViews,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.summaryRepo.UpsertDaily(ctx, summary); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"date":        domain.DateKey(day),
		"total_views": summary.TotalViews,
		"unique":      summary.UniqueVisitors,
	}).Info("Archived daily summary")

	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
