// Package destinations implements the per-user destination CRUD endpoints
// and the shared media catalog. Settings payloads are validated by the
// medium that owns them before anything is persisted.
package destinations

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/middleware"
	"github.com/stveit/argus/internal/media"
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
	case errors.Is(err, models.ErrDuplicateDestination):
		jsonError(w, http.StatusConflict, errCodeConflict, "equivalent destination already exists")
	case errors.Is(err, models.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "destination not found")
	default:
		log.Printf("%s error: %v", op, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

// Request types
type CreateRequest struct {
	Media    string          `json:"media"`
	Settings json.RawMessage `json:"settings"`
}

type UpdateRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// Response types
type DestinationResponse struct {
	ID        string          `json:"id"`
	Media     string          `json:"media"`
	Settings  models.Settings `json:"settings"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type Handler struct {
	storage  storage.Storage
	registry *media.Registry
}

func NewHandler(store storage.Storage, registry *media.Registry) *Handler {
	return &Handler{storage: store, registry: registry}
}

// Media returns the shared media catalog.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, h.registry.Catalog())
}

// List returns the acting user's destinations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.storage.Destinations().ListByUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeStorageError(w, "list destinations", err)
		return
	}

	resp := make([]*DestinationResponse, len(list))
	for i, destination := range list {
		resp[i] = destinationToResponse(destination)
	}
	jsonOK(w, resp)
}

// Create validates the settings payload with the medium and persists the
// destination.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if _, ok := h.registry.Get(req.Media); !ok {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "unknown media type")
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	existing, err := h.storage.Destinations().ListByUser(ctx, userID)
	if err != nil {
		writeStorageError(w, "create destination", err)
		return
	}

	settings, err := h.registry.ValidateSettings(req.Media, req.Settings, existing)
	if err != nil {
		writeStorageError(w, "create destination", err)
		return
	}

	destination := models.NewDestinationConfig(userID, settings)
	if err := h.storage.Destinations().Create(ctx, destination); err != nil {
		writeStorageError(w, "create destination", err)
		return
	}

	log.Printf("destination created: %s %s", destination.MediaSlug, destination.ID)
	jsonCreated(w, destinationToResponse(destination))
}

// GetByID returns one of the acting user's destinations.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	destination, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, destinationToResponse(destination))
}

// Update replaces a destination's settings after medium validation.
// Synced email destinations are maintained by the account lifecycle and
// cannot be edited directly.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	destination, ok := h.load(w, r)
	if !ok {
		return
	}
	if s := destination.EmailSettings(); s != nil && s.Synced {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed,
			"synced destination follows the profile email and cannot be edited")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	existing, err := h.storage.Destinations().ListByUser(ctx, destination.UserID)
	if err != nil {
		writeStorageError(w, "update destination", err)
		return
	}
	// Exclude the destination being updated from the duplicate check.
	others := existing[:0:0]
	for _, d := range existing {
		if d.ID != destination.ID {
			others = append(others, d)
		}
	}

	settings, err := h.registry.ValidateSettings(destination.MediaSlug, req.Settings, others)
	if err != nil {
		writeStorageError(w, "update destination", err)
		return
	}

	destination.Settings = settings
	destination.UpdatedAt = time.Now()
	if err := h.storage.Destinations().Update(ctx, destination); err != nil {
		writeStorageError(w, "update destination", err)
		return
	}

	log.Printf("destination updated: %s %s", destination.MediaSlug, destination.ID)
	jsonOK(w, destinationToResponse(destination))
}

// Delete removes a destination. Profiles referencing it simply lose the
// channel. Synced email destinations are owned by the account lifecycle
// and cannot be deleted directly.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	destination, ok := h.load(w, r)
	if !ok {
		return
	}
	if s := destination.EmailSettings(); s != nil && s.Synced {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed,
			"synced destination follows the profile email and cannot be deleted")
		return
	}

	ctx := r.Context()
	if referenced, err := h.storage.Destinations().IsReferenced(ctx, destination.ID); err == nil && referenced {
		log.Printf("destination %s deleted while referenced by a notification profile", destination.ID)
	}

	if err := h.storage.Destinations().Delete(ctx, destination.ID); err != nil {
		writeStorageError(w, "delete destination", err)
		return
	}

	log.Printf("destination deleted: %s %s", destination.MediaSlug, destination.ID)
	jsonNoContent(w)
}

// load fetches the destination from the URL and enforces ownership.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.DestinationConfig, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "destination id required")
		return nil, false
	}

	ctx := r.Context()
	destination, err := h.storage.Destinations().GetByID(ctx, id)
	if err != nil {
		writeStorageError(w, "get destination", err)
		return nil, false
	}
	if destination.UserID != middleware.GetUserID(ctx) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "destination not found")
		return nil, false
	}
	return destination, true
}

func destinationToResponse(destination *models.DestinationConfig) *DestinationResponse {
	return &DestinationResponse{
		ID:        destination.ID,
		Media:     destination.MediaSlug,
		Settings:  destination.Settings,
		CreatedAt: destination.CreatedAt.Format(time.RFC3339),
		UpdatedAt: destination.UpdatedAt.Format(time.RFC3339),
	}
}
