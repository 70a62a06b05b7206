// Package middleware provides the HTTP middleware stack of the alerting
// API: request logging, panic recovery, metrics, intake rate limiting
// and acting-user resolution.
package middleware

import (
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestLogger returns middleware logging one line per request. In
// verbose mode every request is logged; otherwise only failures, so
// steady-state incident intake does not flood the log.
func RequestLogger(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.New().String()[:8]
			w.Header().Set("X-Request-ID", requestID)

			wrapped := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if verbose || status >= 400 {
				log.Printf("[%s] %s %s %d %d %v from %s",
					requestID,
					r.Method,
					r.URL.Path,
					status,
					wrapped.BytesWritten(),
					time.Since(start),
					clientIP(r),
				)
			}
		})
	}
}
