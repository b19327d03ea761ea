package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"visitor-counter/internal/service"
	"visitor-counter/pkg/database"
	"visitor-counter/pkg/logger"
	"visitor-counter/pkg/redis"
)

// HealthHandler reports the liveness of the service and its dependencies
type HealthHandler struct {
	redisClient    *redis.Client
	db             *database.PostgresDB
	displayService service.DisplayService
	logger         *logger.Logger
}

// NewHealthHandler creates a new health handler. db may be nil when the
// archive is not configured.
func NewHealthHandler(redisClient *redis.Client, db *database.PostgresDB, displayService service.DisplayService, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		redisClient:    redisClient,
		db:             db,
		displayService: displayService,
		logger:         logger,
	}
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Updater   UpdaterStatus     `json:"updater"`
}

// UpdaterStatus summarizes the display updater loop
type UpdaterStatus struct {
	LastSuccess         string `json:"last_success,omitempty"`
	ConsecutiveFailures int64  `json:"consecutive_failures"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string)
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.redisClient.Health(ctx); err != nil {
		h.logger.WithError(err).Warn("Store health check failed")
		checks["store"] = "unhealthy"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "healthy"
	}

	if h.db != nil {
		if err := h.db.Health(ctx); err != nil {
			h.logger.WithError(err).Warn("Archive health check failed")
			checks["archive"] = "unhealthy"
			// The archive is best-effort; its failure degrades but does not
			// take the service down
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["archive"] = "healthy"
		}
	}

	lastSuccess, failures := h.displayService.Status()
	updater := UpdaterStatus{ConsecutiveFailures: failures}
	if !lastSuccess.IsZero() {
		updater.LastSuccess = lastSuccess.UTC().Format(time.RFC3339)
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Updater:   updater,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode health response")
	}
}
