package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// Context keys for storing request-scoped values.
type contextKey string

const userKey contextKey = "user"

// WithUser binds the acting user to the context. Normally done by
// UserContext; exposed for handler tests.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the acting user from context, or nil when the request
// did not pass through UserContext.
func GetUser(ctx context.Context) *models.User {
	if v := ctx.Value(userKey); v != nil {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// GetUserID returns the acting user's ID from context, or "".
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}

func jsonUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// UserContext returns middleware that resolves the acting user from the
// X-User-ID header set by the authenticating front proxy. Authentication
// itself happens upstream; this layer only binds the already-verified
// identity to a stored user.
func UserContext(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				jsonUnauthorized(w, "X-User-ID header required")
				return
			}

			user, err := store.Users().GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					jsonUnauthorized(w, "unknown user")
					return
				}
				log.Printf("resolve user %s: %v", userID, err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":    "INTERNAL_ERROR",
						"message": "internal server error",
					},
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
