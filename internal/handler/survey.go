package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/auth"
	"github.com/dukerupert/tandem/internal/badge"
	"github.com/dukerupert/tandem/internal/store"
	"github.com/dukerupert/tandem/internal/survey"
	ws "github.com/dukerupert/tandem/internal/websocket"
)

type SurveyHandler struct {
	surveyStore *store.SurveyStore
	userStore   *store.UserStore
	picks       *action.Service
	awarder     *badge.Awarder
	hub         *ws.Hub
	mailer      Mailer
	adminEmail  string
	logger      *slog.Logger
}

func NewSurveyHandler(ss *store.SurveyStore, us *store.UserStore, picks *action.Service, awarder *badge.Awarder, hub *ws.Hub, mailer Mailer, adminEmail string, logger *slog.Logger) *SurveyHandler {
	return &SurveyHandler{
		surveyStore: ss,
		userStore:   us,
		picks:       picks,
		awarder:     awarder,
		hub:         hub,
		mailer:      mailer,
		adminEmail:  adminEmail,
		logger:      logger,
	}
}

// Questions handles GET /api/survey/questions.
func (h *SurveyHandler) Questions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.surveyStore.ListQuestions()
	if err != nil {
		h.logger.Error("list survey questions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list questions")
		return
	}
	if len(qs) == 0 {
		writeError(w, http.StatusNotFound, "no survey questions found")
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

type submitRequest struct {
	UserID    json.RawMessage `json:"userId"`
	Responses json.RawMessage `json:"responses"`
	Skip      bool            `json:"skip"`
}

// claimedUserID parses the optional userId field, which may be a number or
// a numeric string. ok is false when the field is absent.
func claimedUserID(raw json.RawMessage) (id int64, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
	} else {
		s = string(raw)
	}
	id, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, errors.New("userId must be an integer")
	}
	return id, true, nil
}

// Submit handles POST /api/survey. The summary write is the only step that
// can fail the request once scoring succeeded; the completed flag, badges,
// live updates and the admin email are best effort.
func (h *SurveyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	claimed, present, err := claimedUserID(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if present && claimed != userID {
		writeError(w, http.StatusForbidden, "cannot submit a survey for another user")
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil {
		h.logger.Error("survey user lookup", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	questions, err := h.surveyStore.ListQuestions()
	if err != nil {
		h.logger.Error("list survey questions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load questions")
		return
	}
	if len(questions) == 0 {
		writeError(w, http.StatusNotFound, "no survey questions found")
		return
	}

	summary := survey.Skip()
	if !req.Skip {
		answers, err := survey.ParseResponses(req.Responses)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := survey.Validate(questions, answers); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		summary = survey.Score(questions, answers)
	}
	summary.UserID = user.ID

	if err := h.surveyStore.UpsertSummary(user.ID, summary); err != nil {
		h.logger.Error("save survey summary", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save survey")
		return
	}
	saved, err := h.surveyStore.GetSummary(user.ID)
	if err != nil || saved == nil {
		h.logger.Warn("reload survey summary", "user_id", user.ID, "error", err)
		saved = &summary
	}

	if err := h.userStore.MarkSurveyCompleted(user.ID); err != nil {
		h.logger.Error("mark survey completed", "user_id", user.ID, "error", err)
	} else {
		user.SurveyCompleted = true
	}

	h.picks.Invalidate(r.Context(), user.ID)
	awarded := checkBadges(h.awarder, user.ID, h.logger)
	h.hub.BroadcastTo(user.Audience(), ws.NewMessage(ws.TypeSurveySubmitted, user.ID, map[string]any{
		"skipped":         saved.Skipped,
		"baseline_health": saved.BaselineHealth,
	}))
	broadcastBadges(h.hub, user.Audience(), user.ID, awarded)

	if h.adminEmail != "" {
		if err := h.mailer.SendSurveySummary(h.adminEmail, user, saved); err != nil {
			h.logger.Error("send survey summary", "user_id", user.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":    saved,
		"new_badges": nonNil(awarded),
	})
}

// Summary handles GET /api/survey/summary.
func (h *SurveyHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	sum, err := h.surveyStore.GetSummary(userID)
	if err != nil {
		h.logger.Error("get survey summary", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "survey not taken yet")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func checkBadges(awarder *badge.Awarder, userID int64, logger *slog.Logger) []string {
	awarded, err := awarder.Check(userID)
	if err != nil {
		logger.Error("award badges", "user_id", userID, "error", err)
	}
	return awarded
}

func broadcastBadges(hub *ws.Hub, audience []int64, userID int64, slugs []string) {
	for _, slug := range slugs {
		hub.BroadcastTo(audience, ws.NewMessage(ws.TypeBadgeEarned, userID, map[string]string{"slug": slug}))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
