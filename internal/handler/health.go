package handler

import (
	"database/sql"
	"net/http"

	"github.com/dukerupert/tandem/internal/backup"
)

type HealthHandler struct {
	db      *sql.DB
	backups *backup.Manager
}

func NewHealthHandler(db *sql.DB, backups *backup.Manager) *HealthHandler {
	return &HealthHandler{db: db, backups: backups}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"backup": h.backups.Status(),
	})
}
