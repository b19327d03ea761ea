package container

import (
	"context"
	"fmt"
	"time"

	"visitor-counter/internal/config"
	"visitor-counter/internal/domain"
	"visitor-counter/internal/repository"
	"visitor-counter/internal/service"
	"visitor-counter/pkg/database"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// Container holds every wired dependency of the application
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	DB          *database.PostgresDB

	SummaryRepo repository.SummaryRepository

	PublicLimiter *service.RateLimiter
	Uniqueness    *service.UniquenessTracker

	SettingsService service.SettingsService
	VisitorService  service.VisitorService
	DisplayService  service.DisplayService
	SweeperService  service.SweeperService
}

// New builds the dependency graph. The counter store is required; the
// archive database is optional and its absence only disables archiving and
// restore-on-start.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize counter store: %w", err)
	}

	var db *database.PostgresDB
	var summaryRepo repository.SummaryRepository
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			// Archive is best-effort; run without it rather than refuse to start
			log.WithError(err).Warn("Archive database unavailable, continuing without it")
			db = nil
		} else {
			summaryRepo = repository.NewSummaryRepository(db)
		}
	} else {
		log.Info("No DATABASE_URL configured, archive disabled")
	}

	defaults := domain.Settings{
		MinVisitors:           cfg.MinVisitors,
		MaxVisitors:           cfg.MaxVisitors,
		UpdateIntervalSeconds: cfg.UpdateIntervalSeconds,
		Enabled:               cfg.DisplayEnabled,
		DisplayMode:           cfg.DisplayMode,
	}

	settingsService := service.NewSettingsService(redisClient, log, defaults)

	rateLimiter := service.NewRateLimiter(
		redisClient,
		log,
		cfg.IngestRateLimit,
		time.Duration(cfg.RateLimitWindowSec)*time.Second,
		cfg.DenylistAfter,
	)
	botFilter := service.NewBotFilter(
		redisClient,
		log,
		cfg.BurstLimit,
		time.Duration(cfg.BurstWindowSec)*time.Second,
	)
	uniqueness := service.NewUniquenessTracker(redisClient, log, cfg.UniquenessSalt)
	aggregator := service.NewAggregator(redisClient, log, cfg.RetentionDays)

	// Looser ceiling for the public read endpoints, tracked per identity in
	// its own window counters
	publicLimiter := service.NewRateLimiter(
		redisClient,
		log,
		cfg.PublicRateLimit,
		time.Duration(cfg.RateLimitWindowSec)*time.Second,
		cfg.DenylistAfter,
	)

	visitorService := service.NewVisitorService(
		redisClient,
		rateLimiter,
		botFilter,
		uniqueness,
		aggregator,
		summaryRepo,
		log,
	)

	displayService := service.NewDisplayService(redisClient, settingsService, aggregator, uniqueness, log)

	sweeperService := service.NewSweeperService(
		redisClient,
		aggregator,
		summaryRepo,
		log,
		cfg.SweepSchedule,
		cfg.RetentionDays,
	)

	return &Container{
		Config:      cfg,
		Logger:      log,
		RedisClient: redisClient,
		DB:          db,

		SummaryRepo: summaryRepo,

		PublicLimiter: publicLimiter,
		Uniqueness:    uniqueness,

		SettingsService: settingsService,
		VisitorService:  visitorService,
		DisplayService:  displayService,
		SweeperService:  sweeperService,
	}, nil
}

// Close releases every held resource
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close counter store client")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
