// Package profiles implements the notification-profile CRUD endpoints. A
// profile binds one timeslot to filter and destination sets; referenced
// entities must exist and belong to the acting user before the profile is
// persisted.
package profiles

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/middleware"
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
		jsonError(w, http.StatusNotFound, errCodeNotFound, "notification profile not found")
	default:
		log.Printf("%s error: %v", op, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

// Request types
type CreateRequest struct {
	Timeslot     string   `json:"timeslot"`
	Filters      []string `json:"filters"`
	Destinations []string `json:"destinations"`
	Active       *bool    `json:"active,omitempty"`
}

type UpdateRequest struct {
	Timeslot     string   `json:"timeslot,omitempty"`
	Filters      []string `json:"filters"`
	Destinations []string `json:"destinations"`
	Active       *bool    `json:"active,omitempty"`
}

// Response types
type ProfileResponse struct {
	ID           string   `json:"id"`
	Timeslot     string   `json:"timeslot"`
	Filters      []string `json:"filters"`
	Destinations []string `json:"destinations"`
	Active       bool     `json:"active"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns the acting user's notification profiles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.storage.Profiles().ListByUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeStorageError(w, "list profiles", err)
		return
	}

	resp := make([]*ProfileResponse, len(list))
	for i, profile := range list {
		resp[i] = profileToResponse(profile)
	}
	jsonOK(w, resp)
}

// Create creates a profile bound to one of the acting user's timeslots.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if !h.checkReferences(w, r, userID, req.Timeslot, req.Filters, req.Destinations) {
		return
	}

	profile := models.NewNotificationProfile(userID, req.Timeslot)
	profile.FilterIDs = req.Filters
	profile.DestinationIDs = req.Destinations
	if req.Active != nil {
		profile.Active = *req.Active
	}

	if err := profile.Validate(); err != nil {
		writeStorageError(w, "create profile", err)
		return
	}
	if err := h.storage.Profiles().Create(ctx, profile); err != nil {
		writeStorageError(w, "create profile", err)
		return
	}

	log.Printf("notification profile created: %s (timeslot %s)", profile.ID, profile.TimeslotID)
	jsonCreated(w, profileToResponse(profile))
}

// GetByID returns one of the acting user's profiles.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, profileToResponse(profile))
}

// Update modifies a profile. Binding it to a different timeslot re-keys
// the stored row; the profile ID stays stable for clients.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	timeslotID := profile.TimeslotID
	if req.Timeslot != "" {
		timeslotID = req.Timeslot
	}
	filters := profile.FilterIDs
	if req.Filters != nil {
		filters = req.Filters
	}
	destinations := profile.DestinationIDs
	if req.Destinations != nil {
		destinations = req.Destinations
	}

	ctx := r.Context()
	if !h.checkReferences(w, r, profile.UserID, timeslotID, filters, destinations) {
		return
	}

	profile.TimeslotID = timeslotID
	profile.FilterIDs = filters
	profile.DestinationIDs = destinations
	if req.Active != nil {
		profile.Active = *req.Active
	}
	profile.UpdatedAt = time.Now()

	if err := h.storage.Profiles().Update(ctx, profile); err != nil {
		writeStorageError(w, "update profile", err)
		return
	}

	log.Printf("notification profile updated: %s (timeslot %s)", profile.ID, profile.TimeslotID)
	jsonOK(w, profileToResponse(profile))
}

// Delete removes a profile and its associations.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.storage.Profiles().Delete(r.Context(), profile.ID); err != nil {
		writeStorageError(w, "delete profile", err)
		return
	}

	log.Printf("notification profile deleted: %s", profile.ID)
	jsonNoContent(w)
}

// checkReferences verifies that the timeslot, filters, and destinations
// all exist and belong to the given user.
func (h *Handler) checkReferences(w http.ResponseWriter, r *http.Request, userID, timeslotID string, filterIDs, destinationIDs []string) bool {
	ctx := r.Context()

	if timeslotID == "" {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "timeslot is required")
		return false
	}
	slot, err := h.storage.Timeslots().GetByID(ctx, timeslotID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		writeStorageError(w, "check profile references", err)
		return false
	}
	if err != nil || slot.UserID != userID {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "timeslot does not exist")
		return false
	}

	for _, id := range filterIDs {
		filter, err := h.storage.Filters().GetByID(ctx, id)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			writeStorageError(w, "check profile references", err)
			return false
		}
		if err != nil || filter.UserID != userID {
			jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "filter does not exist")
			return false
		}
	}

	for _, id := range destinationIDs {
		destination, err := h.storage.Destinations().GetByID(ctx, id)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			writeStorageError(w, "check profile references", err)
			return false
		}
		if err != nil || destination.UserID != userID {
			jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "destination does not exist")
			return false
		}
	}

	return true
}

// load fetches the profile from the URL and enforces ownership.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.NotificationProfile, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "profile id required")
		return nil, false
	}

	ctx := r.Context()
	profile, err := h.storage.Profiles().GetByID(ctx, id)
	if err != nil {
		writeStorageError(w, "get profile", err)
		return nil, false
	}
	if profile.UserID != middleware.GetUserID(ctx) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "notification profile not found")
		return nil, false
	}
	return profile, true
}

func profileToResponse(profile *models.NotificationProfile) *ProfileResponse {
	filters := profile.FilterIDs
	if filters == nil {
		filters = []string{}
	}
	destinations := profile.DestinationIDs
	if destinations == nil {
		destinations = []string{}
	}
	return &ProfileResponse{
		ID:           profile.ID,
		Timeslot:     profile.TimeslotID,
		Filters:      filters,
		Destinations: destinations,
		Active:       profile.Active,
		CreatedAt:    profile.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    profile.UpdatedAt.Format(time.RFC3339),
	}
}
