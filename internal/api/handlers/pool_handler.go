package handlers

import (
	"context"
	"net/http"
	"time"
)

// Warmer is the pool handle's warm-up request.
type Warmer interface {
	Warm(ctx context.Context) error
}

type PoolHandler struct {
	pool Warmer
}

func NewPoolHandler(pool Warmer) *PoolHandler {
	return &PoolHandler{pool: pool}
}

// Warm blocks until the extraction runtime is initialized.
func (h *PoolHandler) Warm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	if err := h.pool.Warm(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health reports liveness only; it never triggers initialization.
func (h *PoolHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
