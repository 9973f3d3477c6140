package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/tandem/internal/backup"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

// BackupHandler exposes backup history and manual runs to the operator
// account named by the admin email.
type BackupHandler struct {
	manager     *backup.Manager
	backupStore *store.BackupStore
	userStore   *store.UserStore
	adminEmail  string
	logger      *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, us *store.UserStore, adminEmail string, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		manager:     m,
		backupStore: bs,
		userStore:   us,
		adminEmail:  strings.ToLower(strings.TrimSpace(adminEmail)),
		logger:      logger,
	}
}

func (h *BackupHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return false
	}
	if h.adminEmail == "" || strings.ToLower(u.Email) != h.adminEmail {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// List handles GET /api/admin/backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	backups, err := h.backupStore.List(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(),
		"backups": backups,
	})
}

// Run handles POST /api/admin/backups.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	if !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}
	b, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusBadGateway, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Download handles GET /api/admin/backups/{id}/download. The body is the
// encrypted object as stored.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	rec, err := h.backupStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load backup")
		return
	}
	if rec == nil || rec.Status != model.BackupStatusCompleted {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}

	rc, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "backup_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "download failed")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Filename+`"`)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream backup", "backup_id", id, "error", err)
	}
}
