// Package incidents implements incident intake: each accepted incident is
// persisted and dispatched to matching notification profiles before the
// response is written, so the caller gets the delivery report inline.
package incidents

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/dispatch"
	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// Response helpers (same pattern as the other handler packages)
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

type Handler struct {
	storage     storage.Storage
	coordinator *dispatch.Coordinator
}

func NewHandler(store storage.Storage, coordinator *dispatch.Coordinator) *Handler {
	return &Handler{storage: store, coordinator: coordinator}
}

// Request types
type CreateRequest struct {
	Description    string            `json:"description"`
	SourceSystemID string            `json:"source_system_id"`
	Tags           map[string]string `json:"tags,omitempty"`
	StartTime      string            `json:"start_time,omitempty"` // RFC3339, defaults to now
}

// Response types
type IncidentResponse struct {
	ID             string            `json:"id"`
	Description    string            `json:"description"`
	SourceSystemID string            `json:"source_system_id"`
	Tags           map[string]string `json:"tags,omitempty"`
	StartTime      string            `json:"start_time"`
}

type CreateResponse struct {
	Incident *IncidentResponse `json:"incident"`
	Report   *dispatch.Report  `json:"report"`
}

// Create ingests an incident and dispatches notifications synchronously.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	req.SourceSystemID = strings.TrimSpace(req.SourceSystemID)
	if req.Description == "" {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "description is required")
		return
	}
	if req.SourceSystemID == "" {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "source_system_id is required")
		return
	}

	incident := models.NewIncident(req.SourceSystemID, req.Description, req.Tags)
	if req.StartTime != "" {
		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "start_time must be RFC3339")
			return
		}
		incident.StartTime = start
	}

	ctx := r.Context()
	if err := h.storage.Incidents().Create(ctx, incident); err != nil {
		log.Printf("create incident error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	report, err := h.coordinator.Dispatch(ctx, incident)
	if err != nil {
		log.Printf("dispatch incident %s error: %v", incident.ID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("incident %s dispatched: %d profile(s) matched", incident.ID, report.Matched)
	jsonCreated(w, CreateResponse{
		Incident: incidentToResponse(incident),
		Report:   report,
	})
}

// List returns recent incidents, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	list, err := h.storage.Incidents().List(r.Context(), limit)
	if err != nil {
		log.Printf("list incidents error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*IncidentResponse, len(list))
	for i, incident := range list {
		resp[i] = incidentToResponse(incident)
	}
	jsonOK(w, resp)
}

// GetByID returns one incident.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "incident id required")
		return
	}

	incident, err := h.storage.Incidents().GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "incident not found")
			return
		}
		log.Printf("get incident error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, incidentToResponse(incident))
}

func incidentToResponse(incident *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:             incident.ID,
		Description:    incident.Description,
		SourceSystemID: incident.SourceSystemID,
		Tags:           incident.Tags,
		StartTime:      incident.StartTime.Format(time.RFC3339),
	}
}
