package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"visitor-counter/internal/config"
	"visitor-counter/internal/container"
	"visitor-counter/internal/handler"
	"visitor-counter/internal/middleware"
	"visitor-counter/pkg/logger"
)

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	server    *http.Server
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Stop the retention sweeper, waiting for an in-flight sweep
	if r.container.SweeperService != nil {
		if err := r.container.SweeperService.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop retention sweeper")
			errs = append(errs, fmt.Errorf("sweeper shutdown: %w", err))
		}
	}

	// Stop the display updater, letting an in-flight cycle finish
	if r.container.DisplayService != nil {
		if err := r.container.DisplayService.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop display updater")
			errs = append(errs, fmt.Errorf("display updater shutdown: %w", err))
		}
	}

	// Close store and archive connections last
	r.container.Close()

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting visitor-counter server")

	// Create dependency injection container
	ctx := context.Background()
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	// Restore counters from the archive before taking traffic
	if err := c.VisitorService.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start visitor service")
	}

	// Start the display updater loop
	if err := c.DisplayService.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start display updater")
	}

	// Schedule the daily retention sweep
	if err := c.SweeperService.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start retention sweeper")
	}

	// Setup router
	router := setupRouter(c)

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Create resources manager for cleanup
	resources := &Resources{
		container: c,
		server:    server,
		log:       log,
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	// Setup cleanup function that will be called regardless of how the program exits
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.Config
	log := c.Logger

	r := chi.NewRouter()

	// Setup CORS middleware
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	// Setup middlewares
	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	// Create handlers
	healthHandler := handler.NewHealthHandler(c.RedisClient, c.DB, c.DisplayService, log)
	visitorHandler := handler.NewVisitorHandler(c.VisitorService, log)
	displayHandler := handler.NewDisplayHandler(c.DisplayService, log)
	adminHandler := handler.NewAdminHandler(c.SettingsService, c.VisitorService, c.DisplayService, c.SummaryRepo, log)

	// Health check (no auth required)
	r.Get("/health", healthHandler.Health)

	// Read-path quota lives in its own window counters, separate from the
	// ingestion pipeline's
	readIdentity := func(sourceAddress string, at time.Time) string {
		return "read:" + c.Uniqueness.Identity(sourceAddress, at)
	}

	// Public API routes
	r.Route("/api", func(r chi.Router) {
		// Public read endpoints share the looser read ceiling
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(c.PublicLimiter, readIdentity, log))
			displayHandler.RegisterRoutes(r)
			visitorHandler.RegisterReadRoutes(r)
		})

		// Ingestion enforces its own stricter quota inside the pipeline
		visitorHandler.RegisterIngestRoutes(r)

		// Admin routes (require admin token)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.AdminJWTSecret, log))
			adminHandler.RegisterRoutes(r)
		})
	})

	return r
}
