// Package filters implements the per-user filter CRUD endpoints plus the
// filter preview, which runs a candidate expression against the stored
// incident pool with the same matching code the dispatcher uses.
package filters

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/middleware"
	"github.com/stveit/argus/internal/filtering"
	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// Response helpers (same pattern as timeslots)
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
	errCodeConflict         = "CONFLICT"
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

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeStorageError(w http.ResponseWriter, op string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, verr.Error())
	case models.IsReferentialConflict(err):
		jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
	case errors.Is(err, models.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "filter not found")
	default:
		log.Printf("%s error: %v", op, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

// Request types
type CreateRequest struct {
	Name   string          `json:"name"`
	Filter json.RawMessage `json:"filter"`
}

type UpdateRequest struct {
	Name   string          `json:"name,omitempty"`
	Filter json.RawMessage `json:"filter,omitempty"`
}

type PreviewRequest struct {
	Filter json.RawMessage `json:"filter"`
	Limit  int             `json:"limit,omitempty"`
}

// Response types
type FilterResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Filter    models.FilterExpr `json:"filter"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns the acting user's filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.storage.Filters().ListByUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeStorageError(w, "list filters", err)
		return
	}

	resp := make([]*FilterResponse, len(list))
	for i, filter := range list {
		resp[i] = filterToResponse(filter)
	}
	jsonOK(w, resp)
}

// Create creates a filter for the acting user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "name is required")
		return
	}

	expr, err := filtering.Parse(string(req.Filter))
	if err != nil {
		writeStorageError(w, "create filter", err)
		return
	}

	ctx := r.Context()
	filter := models.NewFilter(middleware.GetUserID(ctx), strings.TrimSpace(req.Name), expr)
	if err := h.storage.Filters().Create(ctx, filter); err != nil {
		writeStorageError(w, "create filter", err)
		return
	}

	log.Printf("filter created: %s (%s)", filter.Name, filter.ID)
	jsonCreated(w, filterToResponse(filter))
}

// GetByID returns one of the acting user's filters.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, filterToResponse(filter))
}

// Update updates a filter's name and/or expression.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		filter.Name = strings.TrimSpace(req.Name)
	}
	if len(req.Filter) > 0 {
		expr, err := filtering.Parse(string(req.Filter))
		if err != nil {
			writeStorageError(w, "update filter", err)
			return
		}
		filter.Expr = expr
	}
	filter.UpdatedAt = time.Now()

	if err := h.storage.Filters().Update(r.Context(), filter); err != nil {
		writeStorageError(w, "update filter", err)
		return
	}

	log.Printf("filter updated: %s (%s)", filter.Name, filter.ID)
	jsonOK(w, filterToResponse(filter))
}

// Delete removes a filter unless a notification profile references it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.storage.Filters().Delete(r.Context(), filter.ID); err != nil {
		writeStorageError(w, "delete filter", err)
		return
	}

	log.Printf("filter deleted: %s (%s)", filter.Name, filter.ID)
	jsonNoContent(w)
}

// Preview evaluates a candidate filter expression against stored
// incidents without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	expr, err := filtering.Parse(string(req.Filter))
	if err != nil {
		writeStorageError(w, "preview filter", err)
		return
	}

	limit := req.Limit
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	incidents, err := h.storage.Incidents().List(r.Context(), limit)
	if err != nil {
		writeStorageError(w, "preview filter", err)
		return
	}

	jsonOK(w, filtering.Preview(expr, incidents))
}

// load fetches the filter from the URL and enforces ownership.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Filter, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "filter id required")
		return nil, false
	}

	ctx := r.Context()
	filter, err := h.storage.Filters().GetByID(ctx, id)
	if err != nil {
		writeStorageError(w, "get filter", err)
		return nil, false
	}
	if filter.UserID != middleware.GetUserID(ctx) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "filter not found")
		return nil, false
	}
	return filter, true
}

func filterToResponse(filter *models.Filter) *FilterResponse {
	return &FilterResponse{
		ID:        filter.ID,
		Name:      filter.Name,
		Filter:    filter.Expr,
		CreatedAt: filter.CreatedAt.Format(time.RFC3339),
		UpdatedAt: filter.UpdatedAt.Format(time.RFC3339),
	}
}
