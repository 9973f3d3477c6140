package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tandem/internal/auth"
	"github.com/dukerupert/tandem/internal/badge"
	"github.com/dukerupert/tandem/internal/challenge"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
	ws "github.com/dukerupert/tandem/internal/websocket"
)

type ChallengeHandler struct {
	challengeStore *store.ChallengeStore
	userStore      *store.UserStore
	subStore       *store.SubscriptionStore
	awarder        *badge.Awarder
	hub            *ws.Hub
	logger         *slog.Logger
	now            func() time.Time
}

func NewChallengeHandler(cs *store.ChallengeStore, us *store.UserStore, subs *store.SubscriptionStore, awarder *badge.Awarder, hub *ws.Hub, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challengeStore: cs,
		userStore:      us,
		subStore:       subs,
		awarder:        awarder,
		hub:            hub,
		logger:         logger,
		now:            time.Now,
	}
}

type progressResponse struct {
	Challenge  *model.Challenge   `json:"challenge"`
	Enrollment *model.Enrollment  `json:"enrollment"`
	Progress   challenge.Progress `json:"progress"`
}

// List handles GET /api/challenges.
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.challengeStore.List()
	if err != nil {
		h.logger.Error("list challenges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	if list == nil {
		list = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, list)
}

// loadChallenge resolves {id}, writing the error response when it fails.
func (h *ChallengeHandler) loadChallenge(w http.ResponseWriter, r *http.Request) *model.Challenge {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	c, err := h.challengeStore.GetByID(id)
	if err != nil {
		h.logger.Error("get challenge", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "challenge not found")
		return nil
	}
	return c
}

func (h *ChallengeHandler) progress(c *model.Challenge, e *model.Enrollment) (*progressResponse, error) {
	days, err := h.challengeStore.CompletedDays(e.ID)
	if err != nil {
		return nil, err
	}
	return &progressResponse{
		Challenge:  c,
		Enrollment: e,
		Progress:   challenge.Compute(e.StartedOn, h.now().UTC(), days),
	}, nil
}

// Join handles POST /api/challenges/{id}/join. Joining again restarts the
// challenge from today.
func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	c := h.loadChallenge(w, r)
	if c == nil {
		return
	}
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	if c.Premium {
		premium, err := h.subStore.IsPremium(u.ID)
		if err != nil {
			h.logger.Error("check premium", "user_id", u.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !premium {
			writeError(w, http.StatusForbidden, "premium challenge")
			return
		}
	}

	e, err := h.challengeStore.Enroll(u.ID, c.ID, h.now().UTC())
	if err != nil {
		h.logger.Error("enroll", "challenge_id", c.ID, "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join challenge")
		return
	}
	resp, err := h.progress(c, e)
	if err != nil {
		h.logger.Error("challenge progress", "enrollment_id", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.BroadcastTo(u.Audience(), ws.NewMessage(ws.TypeChallengeJoined, u.ID, map[string]any{
		"challenge_id": c.ID,
		"title":        c.Title,
	}))
	writeJSON(w, http.StatusCreated, resp)
}

// Progress handles GET /api/challenges/{id}/progress.
func (h *ChallengeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	c := h.loadChallenge(w, r)
	if c == nil {
		return
	}
	userID := auth.UserID(r.Context())

	e, err := h.challengeStore.GetEnrollment(userID, c.ID)
	if err != nil {
		h.logger.Error("get enrollment", "challenge_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "not enrolled in this challenge")
		return
	}
	resp, err := h.progress(c, e)
	if err != nil {
		h.logger.Error("challenge progress", "enrollment_id", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CompleteDay handles POST /api/challenges/{id}/days/{day}/complete.
func (h *ChallengeHandler) CompleteDay(w http.ResponseWriter, r *http.Request) {
	c := h.loadChallenge(w, r)
	if c == nil {
		return
	}
	day, err := parsePathInt(r, "day")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid day")
		return
	}
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	e, err := h.challengeStore.GetEnrollment(u.ID, c.ID)
	if err != nil {
		h.logger.Error("get enrollment", "challenge_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "not enrolled in this challenge")
		return
	}
	before, err := h.progress(c, e)
	if err != nil {
		h.logger.Error("challenge progress", "enrollment_id", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := challenge.CanComplete(int(day), before.Progress); err != nil {
		switch {
		case errors.Is(err, challenge.ErrDayOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusConflict, err.Error())
		}
		return
	}

	if err := h.challengeStore.CompleteDay(e.ID, int(day)); err != nil {
		h.logger.Error("complete challenge day", "enrollment_id", e.ID, "day", day, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete day")
		return
	}
	after, err := h.progress(c, e)
	if err != nil {
		h.logger.Error("challenge progress", "enrollment_id", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	awarded := checkBadges(h.awarder, u.ID, h.logger)
	h.hub.BroadcastTo(u.Audience(), ws.NewMessage(ws.TypeChallengeDayDone, u.ID, map[string]any{
		"challenge_id": c.ID,
		"day":          day,
		"status":       after.Progress.Status,
	}))
	broadcastBadges(h.hub, u.Audience(), u.ID, awarded)

	writeJSON(w, http.StatusOK, map[string]any{
		"progress":   after,
		"new_badges": nonNil(awarded),
	})
}
