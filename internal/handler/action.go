package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/auth"
	"github.com/dukerupert/tandem/internal/badge"
	"github.com/dukerupert/tandem/internal/holiday"
	"github.com/dukerupert/tandem/internal/store"
	ws "github.com/dukerupert/tandem/internal/websocket"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
)

type ActionHandler struct {
	actionStore *store.ActionStore
	userStore   *store.UserStore
	subStore    *store.SubscriptionStore
	picks       *action.Service
	awarder     *badge.Awarder
	hub         *ws.Hub
	logger      *slog.Logger
	now         func() time.Time
}

func NewActionHandler(as *store.ActionStore, us *store.UserStore, subs *store.SubscriptionStore, picks *action.Service, awarder *badge.Awarder, hub *ws.Hub, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{
		actionStore: as,
		userStore:   us,
		subStore:    subs,
		picks:       picks,
		awarder:     awarder,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

// Today handles GET /api/actions/today.
func (h *ActionHandler) Today(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	pick, err := h.picks.Today(r.Context(), u)
	if err != nil {
		h.logger.Error("select today's actions", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select actions")
		return
	}
	writeJSON(w, http.StatusOK, pick)
}

// Holiday handles GET /api/holiday.
func (h *ActionHandler) Holiday(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	window := holiday.Resolve(holiday.ParseCountry(u.Country), h.now().UTC())
	writeJSON(w, http.StatusOK, map[string]any{
		"window":   window,
		"keywords": holiday.KeywordsFor(window.HolidayName),
	})
}

// History handles GET /api/actions/history?limit=N.
func (h *ActionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	completions, err := h.actionStore.ListCompletions(userID, limit)
	if err != nil {
		h.logger.Error("list completions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if completions == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, completions)
}

// Complete handles POST /api/actions/{id}/complete.
func (h *ActionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	a, err := h.actionStore.GetByID(id)
	if err != nil {
		h.logger.Error("get action", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if a == nil || !a.Active {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	if a.Premium {
		premium, err := h.subStore.IsPremium(u.ID)
		if err != nil {
			h.logger.Error("check premium", "user_id", u.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !premium {
			writeError(w, http.StatusForbidden, "premium action")
			return
		}
	}

	completion, err := h.actionStore.CreateCompletion(a.ID, u.ID, h.now())
	if err != nil {
		h.logger.Error("complete action", "id", id, "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete action")
		return
	}

	h.picks.Invalidate(r.Context(), u.ID)
	awarded := checkBadges(h.awarder, u.ID, h.logger)
	h.hub.BroadcastTo(u.Audience(), ws.NewMessage(ws.TypeActionCompleted, u.ID, completion))
	broadcastBadges(h.hub, u.Audience(), u.ID, awarded)

	writeJSON(w, http.StatusCreated, map[string]any{
		"completion": completion,
		"new_badges": nonNil(awarded),
	})
}

// DeleteCompletion handles DELETE /api/actions/{id}/completions/{completion_id}.
// Earned badges are kept.
func (h *ActionHandler) DeleteCompletion(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	completionID, err := parsePathInt(r, "completion_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid completion id")
		return
	}
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	c, err := h.actionStore.GetCompletion(completionID)
	if err != nil {
		h.logger.Error("get completion", "id", completionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil || c.ActionID != id || c.UserID != u.ID {
		writeError(w, http.StatusNotFound, "completion not found")
		return
	}

	if err := h.actionStore.DeleteCompletion(completionID, u.ID); err != nil {
		h.logger.Error("delete completion", "id", completionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete completion")
		return
	}

	h.picks.Invalidate(r.Context(), u.ID)
	h.hub.BroadcastTo(u.Audience(), ws.NewMessage(ws.TypeCompletionDeleted, u.ID, map[string]int64{
		"action_id":     id,
		"completion_id": completionID,
	}))
	w.WriteHeader(http.StatusNoContent)
}
