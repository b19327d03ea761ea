package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/internal/service"
	"visitor-counter/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// VisitorHandler handles visit ingestion and statistics HTTP requests
type VisitorHandler struct {
	visitorService service.VisitorService
	logger         *logger.Logger
}

// NewVisitorHandler creates a new visitor handler
func NewVisitorHandler(visitorService service.VisitorService, logger *logger.Logger) *VisitorHandler {
	return &VisitorHandler{
		visitorService: visitorService,
		logger:         logger,
	}
}

// VisitRequest is the ingestion payload reported by the front end
type VisitRequest struct {
	PageID    string `json:"page_id"`
	RegionTag string `json:"region_tag,omitempty"`
}

// VisitResponse acknowledges an ingested event
type VisitResponse struct {
	Accepted  bool                  `json:"accepted"`
	Message   string                `json:"message"`
	RateLimit *domain.RateLimitInfo `json:"rate_limit,omitempty"`
}

// StatsResponse wraps statistics payloads
type StatsResponse struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RecordVisit handles POST /api/visitors/visit. The response never exposes
// the pipeline outcome beyond rate limiting: bot-classified and dropped
// events are acknowledged like counted ones.
func (h *VisitorHandler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VisitRequest
	if r.Body != nil {
		// An empty or malformed body still counts as a default-page visit
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ipAddress := h.getRealIPAddress(r)
	if net.ParseIP(ipAddress) == nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "validation", "Invalid source address")
		return
	}

	event := &domain.VisitEvent{
		SourceAddress: ipAddress,
		UserAgent:     r.UserAgent(),
		PageID:        req.PageID,
		RegionTag:     req.RegionTag,
		Timestamp:     time.Now(),
	}

	result, err := h.visitorService.RecordVisit(ctx, event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record visit")
		h.sendErrorResponse(w, http.StatusInternalServerError, "internal", "Failed to record visit")
		return
	}

	if result.RateLimit != nil {
		h.setRateLimitHeaders(w, result.RateLimit)
	}

	if result.Outcome == domain.OutcomeRateLimited {
		response := VisitResponse{
			Accepted:  false,
			Message:   "Rate limit exceeded. Please try again later.",
			RateLimit: result.RateLimit,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			h.logger.WithError(err).Error("Failed to encode rate limit response")
		}
		return
	}

	response := VisitResponse{
		Accepted: true,
		Message:  "Visit accepted",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode visit response")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"page":    event.PageID,
		"outcome": result.Outcome,
	}).Debug("Visit processed")
}

// GetStats handles GET /api/visitors/stats
func (h *VisitorHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.visitorService.GetStats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get visitor stats")
		h.sendErrorResponse(w, http.StatusInternalServerError, "internal", "Failed to get statistics")
		return
	}

	h.sendJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats})
}

// GetPageStats handles GET /api/visitors/pages
func (h *VisitorHandler) GetPageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.visitorService.GetPageStats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get page stats")
		h.sendErrorResponse(w, http.StatusInternalServerError, "internal", "Failed to get page statistics")
		return
	}

	h.sendJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats})
}

// GetHourlyStats handles GET /api/visitors/hourly
func (h *VisitorHandler) GetHourlyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.visitorService.GetHourlyStats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get hourly stats")
		h.sendErrorResponse(w, http.StatusInternalServerError, "internal", "Failed to get hourly statistics")
		return
	}

	h.sendJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats})
}

// GetTrackedPages handles GET /api/visitors/tracked-pages
func (h *VisitorHandler) GetTrackedPages(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, StatsResponse{Success: true, Data: domain.TrackedPages})
}

// getRealIPAddress extracts the real IP address from the request
func (h *VisitorHandler) getRealIPAddress(r *http.Request) string {
	// Check for IP in various headers (in order of preference)
	headers := []string{
		"CF-Connecting-IP", // Cloudflare
		"X-Forwarded-For",  // Standard proxy header
		"X-Real-IP",        // Nginx proxy
	}

	for _, header := range headers {
		if ip := r.Header.Get(header); ip != "" {
			// X-Forwarded-For can contain multiple IPs, take the first one
			if header == "X-Forwarded-For" {
				if firstIP := getFirstIP(ip); firstIP != "" {
					return firstIP
				}
				continue
			}
			return ip
		}
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// getFirstIP extracts the first IP from a comma-separated list
func getFirstIP(ips string) string {
	for i, char := range ips {
		if char == ',' || char == ' ' {
			return ips[:i]
		}
	}
	return ips
}

// setRateLimitHeaders sets standard rate limit headers
func (h *VisitorHandler) setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	remaining := info.Limit - info.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.WindowStart.Add(info.TTL).Unix(), 10))
}

// sendJSON writes a JSON response
func (h *VisitorHandler) sendJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

// sendErrorResponse sends a standardized error response
func (h *VisitorHandler) sendErrorResponse(w http.ResponseWriter, statusCode int, errorType, message string) {
	h.sendJSON(w, statusCode, StatsResponse{
		Success: false,
		Error: &ErrorResponse{
			Type:    errorType,
			Message: message,
		},
	})
}

// RegisterIngestRoutes registers the ingestion route. Its quota is enforced
// inside the pipeline, not by router middleware.
func (h *VisitorHandler) RegisterIngestRoutes(r chi.Router) {
	r.Post("/visitors/visit", h.RecordVisit)
}

// RegisterReadRoutes registers the public statistics routes
func (h *VisitorHandler) RegisterReadRoutes(r chi.Router) {
	r.Get("/visitors/stats", h.GetStats)
	r.Get("/visitors/pages", h.GetPageStats)
	r.Get("/visitors/hourly", h.GetHourlyStats)
	r.Get("/visitors/tracked-pages", h.GetTrackedPages)
}
