package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/auth"
	"github.com/dukerupert/tandem/internal/holiday"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

type ProfileHandler struct {
	userStore  *store.UserStore
	subStore   *store.SubscriptionStore
	badgeStore *store.BadgeStore
	picks      *action.Service
	logger     *slog.Logger
}

func NewProfileHandler(us *store.UserStore, subs *store.SubscriptionStore, bs *store.BadgeStore, picks *action.Service, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{userStore: us, subStore: subs, badgeStore: bs, picks: picks, logger: logger}
}

// currentUser loads the signed-in user, writing a response when it cannot.
func currentUser(w http.ResponseWriter, r *http.Request, us *store.UserStore, logger *slog.Logger) *model.User {
	u, err := us.GetByID(auth.UserID(r.Context()))
	if err != nil {
		logger.Error("load current user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil
	}
	return u
}

type profileResponse struct {
	*model.User
	Premium bool `json:"premium"`
}

// Me handles GET /api/me.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	premium, err := h.subStore.IsPremium(u.ID)
	if err != nil {
		h.logger.Error("check premium", "user_id", u.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, profileResponse{User: u, Premium: premium})
}

// UpdateMe handles PUT /api/me. Omitted fields keep their current value.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	var req struct {
		Name         *string `json:"name"`
		Country      *string `json:"country"`
		ReminderHour *int    `json:"reminder_hour"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	name, country, hour := u.Name, u.Country, u.ReminderHour
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
	}
	if req.Country != nil {
		c := holiday.ParseCountry(*req.Country)
		if strings.TrimSpace(*req.Country) != "" && c == "" {
			writeError(w, http.StatusBadRequest, "country must be US or CA")
			return
		}
		country = string(c)
	}
	if req.ReminderHour != nil {
		if *req.ReminderHour < 0 || *req.ReminderHour > 23 {
			writeError(w, http.StatusBadRequest, "reminder_hour must be between 0 and 23")
			return
		}
		hour = *req.ReminderHour
	}

	updated, err := h.userStore.UpdateProfile(u.ID, name, country, hour)
	if err != nil {
		h.logger.Error("update profile", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if country != u.Country {
		h.picks.Invalidate(r.Context(), u.ID)
	}

	premium, _ := h.subStore.IsPremium(u.ID)
	writeJSON(w, http.StatusOK, profileResponse{User: updated, Premium: premium})
}

type badgeResponse struct {
	model.Badge
	Earned   bool `json:"earned"`
	EarnedAt any  `json:"earned_at"`
}

// Badges handles GET /api/badges: every badge, with the user's earned ones marked.
func (h *ProfileHandler) Badges(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	all, err := h.badgeStore.List()
	if err != nil {
		h.logger.Error("list badges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list badges")
		return
	}
	earned, err := h.badgeStore.ListEarned(userID)
	if err != nil {
		h.logger.Error("list earned badges", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list badges")
		return
	}
	byID := make(map[int64]model.EarnedBadge, len(earned))
	for _, eb := range earned {
		byID[eb.ID] = eb
	}

	out := make([]badgeResponse, 0, len(all))
	for _, b := range all {
		resp := badgeResponse{Badge: b}
		if eb, ok := byID[b.ID]; ok {
			resp.Earned = true
			resp.EarnedAt = eb.EarnedAt
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}
