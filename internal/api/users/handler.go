// Package users implements the user-lifecycle endpoints. Authentication
// lives in the front proxy; these endpoints exist so the identity system
// can drive the notification-side effects explicitly: bootstrap on user
// creation, synced-destination maintenance on email change and login.
package users

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/account"
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

// Request types
type CreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UpdateRequest struct {
	Email *string `json:"email,omitempty"`
}

// Response types
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Handler struct {
	storage  storage.Storage
	accounts *account.Service
}

func NewHandler(store storage.Storage, accounts *account.Service) *Handler {
	return &Handler{storage: store, accounts: accounts}
}

// List returns all users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.Users().List(r.Context())
	if err != nil {
		log.Printf("list users error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*UserResponse, len(users))
	for i, user := range users {
		resp[i] = userToResponse(user)
	}
	jsonOK(w, resp)
}

// Create registers a user and runs the notification bootstrap: the
// default timeslot and, when an email is given, a synced destination.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "username is required")
		return
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "invalid email address")
			return
		}
	}

	ctx := r.Context()
	if existing, err := h.storage.Users().GetByUsername(ctx, req.Username); err == nil && existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "username already exists")
		return
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Printf("create user error: check username: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	user := models.NewUser(req.Username, req.Email)
	if err := h.storage.Users().Create(ctx, user); err != nil {
		log.Printf("create user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if err := h.accounts.BootstrapUser(ctx, user); err != nil {
		log.Printf("bootstrap user %s error: %v", user.ID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("user created: %s (%s)", user.Username, user.ID)
	jsonCreated(w, userToResponse(user))
}

// GetByID returns a user by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, userToResponse(user))
}

// Update changes a user's email and re-syncs the synced destination. An
// explicit empty email deletes the synced destination.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.Email == nil {
		jsonOK(w, userToResponse(user))
		return
	}
	if *req.Email != "" {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			jsonError(w, http.StatusUnprocessableEntity, errCodeValidationFailed, "invalid email address")
			return
		}
	}

	ctx := r.Context()
	user.Email = *req.Email
	user.UpdatedAt = time.Now()
	if err := h.storage.Users().Update(ctx, user); err != nil {
		log.Printf("update user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if err := h.accounts.SyncEmailDestination(ctx, user); err != nil {
		log.Printf("sync destination for user %s error: %v", user.ID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("user updated: %s (%s)", user.Username, user.ID)
	jsonOK(w, userToResponse(user))
}

// Sync is the login hook: the identity system calls it after a successful
// login so the synced email destination follows the profile email.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.accounts.SyncEmailDestination(r.Context(), user); err != nil {
		log.Printf("sync destination for user %s error: %v", user.ID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonNoContent(w)
}

// Delete removes a user; owned entities cascade in storage.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.storage.Users().Delete(r.Context(), user.ID); err != nil {
		log.Printf("delete user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("user deleted: %s (%s)", user.Username, user.ID)
	jsonNoContent(w)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "user id required")
		return nil, false
	}

	user, err := h.storage.Users().GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
			return nil, false
		}
		log.Printf("get user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, false
	}
	return user, true
}

func userToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
