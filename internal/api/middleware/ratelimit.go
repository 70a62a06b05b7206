package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IntakeLimiter caps how fast any single source may post incidents. Each
// client IP gets its own token bucket; buckets idle for a while are
// evicted so the map does not grow with every client ever seen.
type IntakeLimiter struct {
	mu      sync.Mutex
	buckets map[string]*intakeBucket
	limit   rate.Limit
	burst   int
}

type intakeBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketIdleEviction = 10 * time.Minute

// NewIntakeLimiter creates a limiter allowing perMinute incidents per
// client, with a burst of one second's worth (at least 1).
func NewIntakeLimiter(perMinute int) *IntakeLimiter {
	burst := perMinute / 60
	if burst < 1 {
		burst = 1
	}
	l := &IntakeLimiter{
		buckets: make(map[string]*intakeBucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
	go l.evictLoop()
	return l
}

// Allow reports whether the client may post another incident now.
func (l *IntakeLimiter) Allow(client string) bool {
	l.mu.Lock()
	b, ok := l.buckets[client]
	if !ok {
		b = &intakeBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[client] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

func (l *IntakeLimiter) evictLoop() {
	ticker := time.NewTicker(bucketIdleEviction)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-bucketIdleEviction)
		l.mu.Lock()
		for client, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, client)
			}
		}
		l.mu.Unlock()
	}
}

func jsonRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "RATE_LIMITED",
			"message": "too many requests",
		},
	})
}

// IntakeRateLimit returns middleware rejecting requests over the
// per-client intake budget with 429.
func IntakeRateLimit(limiter *IntakeLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				jsonRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the posting client's address, trusting the headers
// the front proxy sets before falling back to the socket peer.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the originating client.
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
