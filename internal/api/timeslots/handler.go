// Package timeslots implements the per-user timeslot CRUD endpoints.
package timeslots

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/middleware"
	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// Response helpers (same pattern as incidents)
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

// writeStorageError maps domain errors onto HTTP statuses.
func writeStorageError(w http.ResponseWriter, op string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, verr.Error())
	case models.IsReferentialConflict(err):
		jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
	case errors.Is(err, models.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "timeslot not found")
	default:
		log.Printf("%s error: %v", op, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

// Request types
type RecurrenceRequest struct {
	Days  []int  `json:"days"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type CreateRequest struct {
	Name        string              `json:"name"`
	Recurrences []RecurrenceRequest `json:"time_recurrences"`
}

type UpdateRequest struct {
	Name        string              `json:"name,omitempty"`
	Recurrences []RecurrenceRequest `json:"time_recurrences"`
}

// Response types
type RecurrenceResponse struct {
	Days   []int  `json:"days"`
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"all_day"`
}

type TimeslotResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Recurrences []RecurrenceResponse `json:"time_recurrences"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns the acting user's timeslots.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slots, err := h.storage.Timeslots().ListByUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeStorageError(w, "list timeslots", err)
		return
	}

	resp := make([]*TimeslotResponse, len(slots))
	for i, slot := range slots {
		resp[i] = timeslotToResponse(slot)
	}
	jsonOK(w, resp)
}

// Create creates a timeslot for the acting user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	slot := models.NewTimeslot(middleware.GetUserID(ctx), strings.TrimSpace(req.Name))
	recurrences, err := recurrencesFromRequest(req.Recurrences)
	if err != nil {
		writeStorageError(w, "create timeslot", err)
		return
	}
	slot.Recurrences = recurrences

	if err := slot.Validate(); err != nil {
		writeStorageError(w, "create timeslot", err)
		return
	}

	if err := h.storage.Timeslots().Create(ctx, slot); err != nil {
		writeStorageError(w, "create timeslot", err)
		return
	}

	log.Printf("timeslot created: %s (%s)", slot.Name, slot.ID)
	jsonCreated(w, timeslotToResponse(slot))
}

// GetByID returns one of the acting user's timeslots.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, timeslotToResponse(slot))
}

// Update replaces a timeslot's name and recurrence set.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		slot.Name = strings.TrimSpace(req.Name)
	}
	if req.Recurrences != nil {
		recurrences, err := recurrencesFromRequest(req.Recurrences)
		if err != nil {
			writeStorageError(w, "update timeslot", err)
			return
		}
		slot.Recurrences = recurrences
	}
	slot.UpdatedAt = time.Now()

	if err := slot.Validate(); err != nil {
		writeStorageError(w, "update timeslot", err)
		return
	}

	if err := h.storage.Timeslots().Update(r.Context(), slot); err != nil {
		writeStorageError(w, "update timeslot", err)
		return
	}

	log.Printf("timeslot updated: %s (%s)", slot.Name, slot.ID)
	jsonOK(w, timeslotToResponse(slot))
}

// Delete removes a timeslot. Recurrences and the notification profile
// bound to the timeslot are removed with it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.storage.Timeslots().Delete(r.Context(), slot.ID); err != nil {
		writeStorageError(w, "delete timeslot", err)
		return
	}

	log.Printf("timeslot deleted: %s (%s)", slot.Name, slot.ID)
	jsonNoContent(w)
}

// load fetches the timeslot from the URL and enforces ownership.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Timeslot, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "timeslot id required")
		return nil, false
	}

	ctx := r.Context()
	slot, err := h.storage.Timeslots().GetByID(ctx, id)
	if err != nil {
		writeStorageError(w, "get timeslot", err)
		return nil, false
	}
	if slot.UserID != middleware.GetUserID(ctx) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "timeslot not found")
		return nil, false
	}
	return slot, true
}

func recurrencesFromRequest(reqs []RecurrenceRequest) ([]models.TimeRecurrence, error) {
	recurrences := make([]models.TimeRecurrence, 0, len(reqs))
	for _, req := range reqs {
		start, err := models.ParseTimeOfDay(req.Start)
		if err != nil {
			return nil, &models.ValidationError{Field: "start", Reason: err.Error()}
		}
		end, err := models.ParseTimeOfDay(req.End)
		if err != nil {
			return nil, &models.ValidationError{Field: "end", Reason: err.Error()}
		}
		days := make([]models.Day, len(req.Days))
		for i, d := range req.Days {
			days[i] = models.Day(d)
		}
		recurrences = append(recurrences, models.TimeRecurrence{
			Days:  days,
			Start: start,
			End:   end,
		})
	}
	return recurrences, nil
}

func timeslotToResponse(slot *models.Timeslot) *TimeslotResponse {
	recurrences := make([]RecurrenceResponse, len(slot.Recurrences))
	for i, rec := range slot.Recurrences {
		days := make([]int, len(rec.Days))
		for j, d := range rec.Days {
			days[j] = int(d)
		}
		recurrences[i] = RecurrenceResponse{
			Days:   days,
			Start:  rec.Start.String(),
			End:    rec.End.String(),
			AllDay: rec.AllDay(),
		}
	}
	return &TimeslotResponse{
		ID:          slot.ID,
		Name:        slot.Name,
		Recurrences: recurrences,
		CreatedAt:   slot.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   slot.UpdatedAt.Format(time.RFC3339),
	}
}
