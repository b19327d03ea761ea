package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// Hash fields of the per-day total aggregate
const (
	aggFieldViews  = "views"
	aggFieldUnique = "unique"
)

// detailRingSize caps the per-day visit detail list
const detailRingSize = 1000

// Aggregator folds filtered events into per-page, per-hour and total
// counters. Every increment is an independent atomic operation; readers may
// observe totals slightly ahead of per-page counts, which is acceptable for
// analytics.
type Aggregator struct {
	redisClient   *redis.Client
	logger        *logger.Logger
	retentionDays int
}

// NewAggregator creates an aggregator with the given retention window
func NewAggregator(redisClient *redis.Client, log *logger.Logger, retentionDays int) *Aggregator {
	return &Aggregator{
		redisClient:   redisClient,
		logger:        log,
		retentionDays: retentionDays,
	}
}

// RecordVisit folds one genuine event into the aggregates. newUnique comes
// from the uniqueness tracker.
func (a *Aggregator) RecordVisit(ctx context.Context, event *domain.VisitEvent, identity string, newUnique bool) error {
	date := domain.DateKey(event.Timestamp)
	kb := a.redisClient.KeyBuilder
	ttl := a.retentionTTL()

	pipe := a.redisClient.Pipeline()

	totalKey := kb.KeyAggTotal(date)
	pipe.HIncrBy(ctx, totalKey, aggFieldViews, 1)
	if newUnique {
		pipe.HIncrBy(ctx, totalKey, aggFieldUnique, 1)
	}
	pipe.Expire(ctx, totalKey, ttl)

	pageKey := kb.KeyAggPage(domain.NormalizePage(event.PageID), date)
	pipe.Incr(ctx, pageKey)
	pipe.Expire(ctx, pageKey, ttl)

	hourKey := kb.KeyAggHour(event.Timestamp.Hour(), date)
	pipe.Incr(ctx, hourKey)
	pipe.Expire(ctx, hourKey, ttl)

	pipe.Incr(ctx, kb.KeyAggLifetime())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record visit aggregates: %w", err)
	}

	a.saveDetail(ctx, event, identity)

	return nil
}

// RecordBot tallies a bot-classified event. Bot traffic is visible in its
// own scope only and never reaches the visitor-facing aggregates.
func (a *Aggregator) RecordBot(ctx context.Context, at time.Time) error {
	key := a.redisClient.KeyBuilder.KeyAggBot(domain.DateKey(at))

	count, err := a.redisClient.Incr(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to record bot event: %w", err)
	}
	if count == 1 {
		if err := a.redisClient.Expire(ctx, key, a.retentionTTL()); err != nil {
			a.logger.WithError(err).Warn("Failed to set bot counter expiry")
		}
	}
	return nil
}

// StatsFor reads the aggregate counters for one day
func (a *Aggregator) StatsFor(ctx context.Context, at time.Time) (*domain.VisitorStats, error) {
	date := domain.DateKey(at)
	kb := a.redisClient.KeyBuilder

	totals, err := a.redisClient.HGetAll(ctx, kb.KeyAggTotal(date))
	if err != nil {
		return nil, fmt.Errorf("failed to read total aggregates: %w", err)
	}

	stats := &domain.VisitorStats{
		Date:        date,
		LastUpdated: time.Now(),
	}
	stats.TotalViews = parseCounter(totals[aggFieldViews])
	stats.UniqueVisitors = parseCounter(totals[aggFieldUnique])

	bot, err := a.redisClient.Get(ctx, kb.KeyAggBot(date))
	if err != nil && !redis.IsNil(err) {
		return nil, fmt.Errorf("failed to read bot counter: %w", err)
	}
	stats.BotFiltered = parseCounter(bot)

	lifetime, err := a.redisClient.Get(ctx, kb.KeyAggLifetime())
	if err != nil && !redis.IsNil(err) {
		return nil, fmt.Errorf("failed to read lifetime counter: %w", err)
	}
	stats.LifetimeViews = parseCounter(lifetime)

	return stats, nil
}

// PageStatsFor reads per-page view counts for one day across the registry
func (a *Aggregator) PageStatsFor(ctx context.Context, at time.Time) ([]domain.PageStats, error) {
	date := domain.DateKey(at)
	kb := a.redisClient.KeyBuilder

	pages := make([]domain.PageStats, 0, len(domain.TrackedPages)+1)
	for _, p := range domain.TrackedPages {
		views, err := a.redisClient.Get(ctx, kb.KeyAggPage(p.Page, date))
		if err != nil && !redis.IsNil(err) {
			return nil, fmt.Errorf("failed to read page counter: %w", err)
		}
		pages = append(pages, domain.PageStats{
			Page:     p.Page,
			PageName: p.Name,
			Views:    parseCounter(views),
		})
	}

	other, err := a.redisClient.Get(ctx, kb.KeyAggPage(domain.OtherPage, date))
	if err != nil && !redis.IsNil(err) {
		return nil, fmt.Errorf("failed to read page counter: %w", err)
	}
	if n := parseCounter(other); n > 0 {
		pages = append(pages, domain.PageStats{
			Page:     domain.OtherPage,
			PageName: domain.PageName(domain.OtherPage),
			Views:    n,
		})
	}

	return pages, nil
}

// HourlyStatsFor reads the 24 hour buckets for one day
func (a *Aggregator) HourlyStatsFor(ctx context.Context, at time.Time) ([]domain.HourlyStat, error) {
	date := domain.DateKey(at)
	kb := a.redisClient.KeyBuilder

	stats := make([]domain.HourlyStat, 0, 24)
	for hour := 0; hour < 24; hour++ {
		visits, err := a.redisClient.Get(ctx, kb.KeyAggHour(hour, date))
		if err != nil && !redis.IsNil(err) {
			return nil, fmt.Errorf("failed to read hour counter: %w", err)
		}
		period := domain.HourPeriod(hour)
		stats = append(stats, domain.HourlyStat{
			Hour:       hour,
			Visits:     parseCounter(visits),
			Period:     period,
			PeriodName: domain.HourPeriodName(period),
		})
	}

	return stats, nil
}

// CurrentHourViews reads the running view count for the hour containing t.
// The display updater uses it as its recent-throughput signal.
func (a *Aggregator) CurrentHourViews(ctx context.Context, t time.Time) (int64, error) {
	views, err := a.redisClient.Get(ctx, a.redisClient.KeyBuilder.KeyAggHour(t.Hour(), domain.DateKey(t)))
	if err != nil && !redis.IsNil(err) {
		return 0, err
	}
	return parseCounter(views), nil
}

// ResetDay deletes one day's counters and unique set. Used by the manual
// admin reset; scheduled rollover relies on TTLs and the sweeper.
func (a *Aggregator) ResetDay(ctx context.Context, at time.Time) error {
	date := domain.DateKey(at)
	kb := a.redisClient.KeyBuilder

	keys := []string{
		kb.KeyAggTotal(date),
		kb.KeyAggBot(date),
		kb.KeyUniqueDaily(date),
		kb.KeyVisitDetails(date),
	}
	for _, p := range domain.TrackedPages {
		keys = append(keys, kb.KeyAggPage(p.Page, date))
	}
	keys = append(keys, kb.KeyAggPage(domain.OtherPage, date))
	for hour := 0; hour < 24; hour++ {
		keys = append(keys, kb.KeyAggHour(hour, date))
	}

	if err := a.redisClient.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return nil
}

// DeleteDay removes every detailed structure for one day. The sweeper calls
// it for days past the retention window; deleting absent keys is a no-op,
// which keeps the sweep idempotent.
func (a *Aggregator) DeleteDay(ctx context.Context, at time.Time) error {
	return a.ResetDay(ctx, at)
}

// saveDetail appends a hashed visit record to the day's capped ring. Detail
// loss is tolerable, so failures only log.
func (a *Aggregator) saveDetail(ctx context.Context, event *domain.VisitEvent, identity string) {
	detail := domain.VisitDetail{
		IdentityHash: identity,
		PageID:       domain.NormalizePage(event.PageID),
		DeviceType:   domain.DetectDeviceType(event.UserAgent),
		Browser:      domain.DetectBrowser(event.UserAgent),
		RegionTag:    event.RegionTag,
		Timestamp:    event.Timestamp,
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to marshal visit detail")
		return
	}

	key := a.redisClient.KeyBuilder.KeyVisitDetails(domain.DateKey(event.Timestamp))
	if err := a.redisClient.LPush(ctx, key, payload); err != nil {
		a.logger.WithError(err).Warn("Failed to save visit detail")
		return
	}
	if err := a.redisClient.LTrim(ctx, key, detailRingSize-1); err != nil {
		a.logger.WithError(err).Warn("Failed to trim visit details")
	}
	if err := a.redisClient.Expire(ctx, key, a.retentionTTL()); err != nil {
		a.logger.WithError(err).Warn("Failed to set visit detail expiry")
	}
}

// retentionTTL converts the retention window to a TTL with a day of slack so
// the sweeper can archive a finished day before it expires
func (a *Aggregator) retentionTTL() time.Duration {
	return time.Duration(a.retentionDays+1) * 24 * time.Hour
}

// parseCounter converts a stored counter value, treating absent as zero
func parseCounter(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
