// Package health implements the liveness and readiness probes. Readiness
// aggregates the dispatch path's dependencies: the incident store and the
// SMTP relay the media send through.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// checkTimeout bounds the whole readiness sweep; a hanging relay must
// not hang the probe.
const checkTimeout = 5 * time.Second

// Handler serves the probe endpoints over a set of registered checkers.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterChecker adds a dependency to the readiness sweep.
func (h *Handler) RegisterChecker(c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeProbe(w http.ResponseWriter, status int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Health answers "is the process up" without touching dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, probeResponse{Status: "ok"})
}

// Live is the liveness probe; it never checks dependencies, so a broken
// relay cannot get the process restarted.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, probeResponse{Status: "live"})
}

// Ready sweeps every registered checker and reports 503 until all of
// them pass, with the per-dependency error in the body.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	h.mu.RLock()
	checkers := make([]Checker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	checks := make(map[string]string, len(checkers))
	ready := true
	for _, checker := range checkers {
		if err := checker.Check(ctx); err != nil {
			checks[checker.Name()] = err.Error()
			ready = false
			continue
		}
		checks[checker.Name()] = "ok"
	}

	if !ready {
		writeProbe(w, http.StatusServiceUnavailable, probeResponse{Status: "not_ready", Checks: checks})
		return
	}
	writeProbe(w, http.StatusOK, probeResponse{Status: "ready", Checks: checks})
}
