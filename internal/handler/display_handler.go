package handler

import (
	"encoding/json"
	"net/http"

	"visitor-counter/internal/service"
	"visitor-counter/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// DisplayHandler serves the published visitor count
type DisplayHandler struct {
	displayService service.DisplayService
	logger         *logger.Logger
}

// NewDisplayHandler creates a new display handler
func NewDisplayHandler(displayService service.DisplayService, logger *logger.Logger) *DisplayHandler {
	return &DisplayHandler{
		displayService: displayService,
		logger:         logger,
	}
}

// GetCurrent handles GET /api/visitors/current
func (h *DisplayHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	display, err := h.displayService.GetDisplay(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get display state")
		h.sendError(w, http.StatusServiceUnavailable, "store_unavailable", "Display count is temporarily unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(display); err != nil {
		h.logger.WithError(err).Error("Failed to encode display response")
	}
}

func (h *DisplayHandler) sendError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := StatsResponse{
		Success: false,
		Error: &ErrorResponse{
			Type:    errorType,
			Message: message,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// RegisterRoutes registers display routes with the router
func (h *DisplayHandler) RegisterRoutes(r chi.Router) {
	r.Get("/visitors/current", h.GetCurrent)
}
