package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lumina-bi/lumina-engine/pkg/database"
)

// HealthHandler reports process and database liveness.
type HealthHandler struct {
	db *database.DB
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health responds 200 when the engine and its database are reachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
