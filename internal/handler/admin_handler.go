package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"visitor-counter/internal/domain"
	"visitor-counter/internal/middleware"
	"visitor-counter/internal/repository"
	"visitor-counter/internal/service"
	apperrors "visitor-counter/pkg/errors"
	"visitor-counter/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// AdminHandler handles authenticated administrative operations
type AdminHandler struct {
	settingsService service.SettingsService
	visitorService  service.VisitorService
	displayService  service.DisplayService
	summaryRepo     repository.SummaryRepository
	logger          *logger.Logger
}

// NewAdminHandler creates a new admin handler. The summary repository may be
// nil when no archive database is configured.
func NewAdminHandler(
	settingsService service.SettingsService,
	visitorService service.VisitorService,
	displayService service.DisplayService,
	summaryRepo repository.SummaryRepository,
	logger *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		settingsService: settingsService,
		visitorService:  visitorService,
		displayService:  displayService,
		summaryRepo:     summaryRepo,
		logger:          logger,
	}
}

// SettingsResponse wraps a settings payload
type SettingsResponse struct {
	Success bool             `json:"success"`
	Data    *domain.Settings `json:"data,omitempty"`
	Error   *ErrorResponse   `json:"error,omitempty"`
}

// ActionResponse acknowledges an admin action
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SummaryResponse wraps one archived daily summary
type SummaryResponse struct {
	Success bool                 `json:"success"`
	Data    *domain.DailySummary `json:"data,omitempty"`
	Error   *ErrorResponse       `json:"error,omitempty"`
}

// ArchiveStatus reports the state of the summary archive
type ArchiveStatus struct {
	Count  int64                `json:"count"`
	Latest *domain.DailySummary `json:"latest,omitempty"`
}

// ArchiveStatusResponse wraps the archive status payload
type ArchiveStatusResponse struct {
	Success bool           `json:"success"`
	Data    *ArchiveStatus `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// GetSettings handles GET /api/admin/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.Get(r.Context())
	if err != nil {
		h.handleError(w, r, err, "Failed to get settings")
		return
	}

	h.sendJSON(w, http.StatusOK, SettingsResponse{Success: true, Data: settings})
}

// UpdateSettings handles PUT /api/admin/settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update domain.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.sendAppError(w, r, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	subject := middleware.AdminSubject(r.Context())
	settings, err := h.settingsService.Update(r.Context(), &update, subject)
	if err != nil {
		h.handleError(w, r, err, "Failed to update settings")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"modified_by": subject,
		"mode":        settings.Mode(),
		"enabled":     settings.Enabled,
	}).Info("Settings updated")

	h.sendJSON(w, http.StatusOK, SettingsResponse{Success: true, Data: settings})
}

// ForceUpdate handles POST /api/admin/reset. It publishes a fresh display
// value immediately, outside the normal update cadence.
func (h *AdminHandler) ForceUpdate(w http.ResponseWriter, r *http.Request) {
	if err := h.displayService.ForceUpdate(r.Context()); err != nil {
		h.handleError(w, r, err, "Failed to force display update")
		return
	}

	h.logger.WithField("subject", middleware.AdminSubject(r.Context())).Info("Display update forced")
	h.sendJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Display updated"})
}

// ResetCounters handles POST /api/admin/counters/reset
func (h *AdminHandler) ResetCounters(w http.ResponseWriter, r *http.Request) {
	if err := h.visitorService.ResetDailyCounters(r.Context()); err != nil {
		h.handleError(w, r, err, "Failed to reset counters")
		return
	}

	h.logger.WithField("subject", middleware.AdminSubject(r.Context())).Warn("Daily counters reset")
	h.sendJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Daily counters reset"})
}

// GetArchiveStatus handles GET /api/admin/summaries
func (h *AdminHandler) GetArchiveStatus(w http.ResponseWriter, r *http.Request) {
	if h.summaryRepo == nil {
		h.sendAppError(w, r, apperrors.NewStoreUnavailableError("Archive database is not configured", nil))
		return
	}

	count, err := h.summaryRepo.Count(r.Context())
	if err != nil {
		h.handleError(w, r, err, "Failed to count archived summaries")
		return
	}

	latest, err := h.summaryRepo.GetLatest(r.Context())
	if err != nil {
		h.handleError(w, r, err, "Failed to read latest archived summary")
		return
	}

	h.sendJSON(w, http.StatusOK, ArchiveStatusResponse{
		Success: true,
		Data:    &ArchiveStatus{Count: count, Latest: latest},
	})
}

// GetSummaryByDate handles GET /api/admin/summaries/{date}
func (h *AdminHandler) GetSummaryByDate(w http.ResponseWriter, r *http.Request) {
	if h.summaryRepo == nil {
		h.sendAppError(w, r, apperrors.NewStoreUnavailableError("Archive database is not configured", nil))
		return
	}

	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		h.sendAppError(w, r, apperrors.NewValidationError("Date must use the 2006-01-02 layout", nil))
		return
	}

	summary, err := h.summaryRepo.GetByDate(r.Context(), date)
	if err != nil {
		h.handleError(w, r, err, "Failed to read archived summary")
		return
	}
	if summary == nil {
		h.sendAppError(w, r, apperrors.NewNotFoundError("No summary archived for that date"))
		return
	}

	h.sendJSON(w, http.StatusOK, SummaryResponse{Success: true, Data: summary})
}

// handleError maps service errors onto HTTP responses. Admin paths are
// fail-closed: store failures surface as 503 instead of silent fallbacks.
func (h *AdminHandler) handleError(w http.ResponseWriter, r *http.Request, err error, logMessage string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.logger.WithError(err).Error(logMessage)
		}
		h.sendAppError(w, r, appErr)
		return
	}

	h.logger.WithError(err).Error(logMessage)
	h.sendAppError(w, r, apperrors.NewInternalError(logMessage, err))
}

func (h *AdminHandler) sendAppError(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError) {
	var response apperrors.ErrorResponse
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = r.Header.Get("X-Request-ID")
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	h.sendJSON(w, appErr.StatusCode, response)
}

func (h *AdminHandler) sendJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

// RegisterRoutes registers admin routes with the router
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)
		r.Post("/reset", h.ForceUpdate)
		r.Post("/counters/reset", h.ResetCounters)
		r.Get("/summaries", h.GetArchiveStatus)
		r.Get("/summaries/{date}", h.GetSummaryByDate)
	})
}
