package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/services"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// DashboardHandler handles dashboard API endpoints
type DashboardHandler struct {
	datasets *services.DatasetService
	playback *services.PlaybackService
	filter   *services.FilterService
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	datasets *services.DatasetService,
	playback *services.PlaybackService,
	filter *services.FilterService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		datasets: datasets,
		playback: playback,
		filter:   filter,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// GetDataset handles GET /api/dataset
func (h *DashboardHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dataset"
	defer h.observe(endpoint, time.Now())

	ds, err := h.datasets.Load(r.Context())
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, services.Summarize(ds), http.StatusOK)
}

// CreateSession handles POST /api/playback/sessions
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/playback/sessions"
	defer h.observe(endpoint, time.Now())

	fields, err := parseFields(r)
	if err != nil {
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.playback.CreateSession(r.Context(), fields)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	w.Header().Set("Location", "/api/playback/sessions/"+view.SessionID)
	h.metrics.RecordAPIRequest(endpoint, r.Method, "201")
	h.sendJSON(w, view, http.StatusCreated)
}

// GetSession handles GET /api/playback/sessions/{id}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/playback/sessions/{id}"
	defer h.observe(endpoint, time.Now())

	fields, err := parseFields(r)
	if err != nil {
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.playback.Render(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, view, http.StatusOK)
}

// AdvanceSession handles POST /api/playback/sessions/{id}/advance
func (h *DashboardHandler) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/playback/sessions/{id}/advance"
	defer h.observe(endpoint, time.Now())

	result, err := h.playback.Advance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

// ResetSession handles POST /api/playback/sessions/{id}/reset
func (h *DashboardHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/playback/sessions/{id}/reset"
	defer h.observe(endpoint, time.Now())

	result, err := h.playback.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, result, http.StatusOK)
}

// DeleteSession handles DELETE /api/playback/sessions/{id}
func (h *DashboardHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/playback/sessions/{id}"
	defer h.observe(endpoint, time.Now())

	if err := h.playback.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "204")
	w.WriteHeader(http.StatusNoContent)
}

// GetFilter handles GET /api/filter
func (h *DashboardHandler) GetFilter(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/filter"
	defer h.observe(endpoint, time.Now())

	req, err := parseFilterRequest(r)
	if err != nil {
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.filter.View(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, view, http.StatusOK)
}

// GetReport handles GET /api/filter/report.csv
func (h *DashboardHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/filter/report.csv"
	defer h.observe(endpoint, time.Now())

	req, err := parseFilterRequest(r)
	if err != nil {
		h.sendError(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.filter.Report(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, endpoint, err)
		return
	}

	w.Header().Set("Content-Type", services.ReportContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+services.ReportFileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn(r.Context(), "[API_REPORT_WRITE_ERROR] Failed to write report", logging.Fields{
			"bytes": len(data),
			"error": err.Error(),
		})
	}
	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseFilterRequest reads start_date, end_date and field from the query
func parseFilterRequest(r *http.Request) (services.FilterRequest, error) {
	var req services.FilterRequest
	query := r.URL.Query()

	if s := query.Get("start_date"); s != "" {
		d, err := models.ParseDate("start_date", s)
		if err != nil {
			return req, err
		}
		req.StartDate = &d
	}
	if s := query.Get("end_date"); s != "" {
		d, err := models.ParseDate("end_date", s)
		if err != nil {
			return req, err
		}
		req.EndDate = &d
	}

	fields, err := parseFields(r)
	if err != nil {
		return req, err
	}
	req.Fields = fields
	return req, nil
}

// parseFields accepts repeated or comma-separated field parameters
func parseFields(r *http.Request) ([]models.Field, error) {
	var fields []models.Field
	for _, raw := range r.URL.Query()["field"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f := models.Field(part)
			if !f.Valid() {
				return nil, &models.ValidationError{
					Field:   "field",
					Value:   part,
					Message: "invalid field " + strconv.Quote(part) + ", expected irradiance or temperature",
				}
			}
			fields = append(fields, f)
		}
	}
	return fields, nil
}

// handleServiceError maps service errors onto HTTP statuses
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	ctx := r.Context()

	var validationErr *models.ValidationError
	var alignmentErr *models.AlignmentError

	switch {
	case models.IsNotFound(err, models.ResourceSession):
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusNotFound)

	case models.IsNotFound(err, ""):
		h.logger.Error(ctx, "[API_INPUT_MISSING] Input data unavailable", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordAPIError("input_missing", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)

	case errors.As(err, &alignmentErr):
		h.logger.Error(ctx, "[API_INPUT_MISALIGNED] Input data misaligned", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordAPIError("input_misaligned", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)

	case errors.As(err, &validationErr):
		h.logger.Error(ctx, "[API_INPUT_INVALID] Input data invalid", logging.Fields{
			"endpoint": endpoint,
			"field":    validationErr.Field,
		}, err)
		h.metrics.RecordAPIError("input_invalid", endpoint)
		h.sendError(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)

	default:
		h.logger.Error(ctx, "[API_INTERNAL_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, endpoint, "internal server error", http.StatusInternalServerError)
	}
}

func (h *DashboardHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint, message string, statusCode int) {
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/dataset", h.GetDataset).Methods("GET")

	router.HandleFunc("/api/playback/sessions", h.CreateSession).Methods("POST")
	router.HandleFunc("/api/playback/sessions/{id}", h.GetSession).Methods("GET")
	router.HandleFunc("/api/playback/sessions/{id}", h.DeleteSession).Methods("DELETE")
	router.HandleFunc("/api/playback/sessions/{id}/advance", h.AdvanceSession).Methods("POST")
	router.HandleFunc("/api/playback/sessions/{id}/reset", h.ResetSession).Methods("POST")

	router.HandleFunc("/api/filter", h.GetFilter).Methods("GET")
	router.HandleFunc("/api/filter/report.csv", h.GetReport).Methods("GET")
}
