package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is the narrow store dependency healthz needs: a connectivity
// check, satisfied by both internal/repository backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthzHandler serves liveness and readiness checks.
type HealthzHandler struct {
	store Pinger
}

// NewHealthzHandler builds a HealthzHandler. store may be nil, in which
// case readiness always reports ok (no durable dependency configured).
func NewHealthzHandler(store Pinger) *HealthzHandler {
	return &HealthzHandler{store: store}
}

// Live handles GET /healthz/live.
func (h *HealthzHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready handles GET /healthz/ready.
func (h *HealthzHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"reason": "database_unavailable",
				"error":  err.Error(),
			})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
