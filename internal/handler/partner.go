package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/invite"
	"github.com/dukerupert/tandem/internal/store"
	ws "github.com/dukerupert/tandem/internal/websocket"
)

type PartnerHandler struct {
	userStore *store.UserStore
	issuer    *invite.Issuer
	mailer    Mailer
	picks     *action.Service
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewPartnerHandler(us *store.UserStore, issuer *invite.Issuer, mailer Mailer, picks *action.Service, hub *ws.Hub, logger *slog.Logger) *PartnerHandler {
	return &PartnerHandler{userStore: us, issuer: issuer, mailer: mailer, picks: picks, hub: hub, logger: logger}
}

// Invite handles POST /api/partner/invite.
func (h *PartnerHandler) Invite(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	emailAddr, ok := normalizeEmail(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if emailAddr == u.Email {
		writeError(w, http.StatusBadRequest, "you cannot invite yourself")
		return
	}
	if u.PartnerID != nil {
		writeError(w, http.StatusConflict, "you already have a partner")
		return
	}

	token, claims, err := h.issuer.Issue(u.ID, emailAddr)
	if err != nil {
		h.logger.Error("issue invitation", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.mailer.SendPartnerInvite(emailAddr, u.Name, token); err != nil {
		h.logger.Error("send invitation", "user_id", u.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to send invitation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"email":      emailAddr,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// Accept handles POST /api/partner/accept. The invitation must have been
// addressed to the signed-in user's email.
func (h *PartnerHandler) Accept(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	claims, err := h.issuer.Parse(strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, invite.ErrExpired) {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if claims.Email != u.Email {
		writeError(w, http.StatusForbidden, "this invitation was sent to a different address")
		return
	}
	if claims.InviterID == u.ID {
		writeError(w, http.StatusBadRequest, "you cannot accept your own invitation")
		return
	}

	inviter, err := h.userStore.GetByID(claims.InviterID)
	if err != nil {
		h.logger.Error("invitation inviter lookup", "inviter_id", claims.InviterID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if inviter == nil {
		writeError(w, http.StatusNotFound, "inviter no longer exists")
		return
	}
	if u.PartnerID != nil || inviter.PartnerID != nil {
		writeError(w, http.StatusConflict, "already linked to a partner")
		return
	}

	if err := h.userStore.LinkPartners(inviter.ID, u.ID); err != nil {
		h.logger.Error("link partners", "inviter_id", inviter.ID, "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to link partner")
		return
	}

	audience := []int64{inviter.ID, u.ID}
	h.picks.Invalidate(r.Context(), audience...)
	h.hub.BroadcastTo(audience, ws.NewMessage(ws.TypePartnerLinked, u.ID, map[string]int64{
		"inviter_id": inviter.ID,
		"partner_id": u.ID,
	}))

	updated, err := h.userStore.GetByID(u.ID)
	if err != nil || updated == nil {
		h.logger.Error("reload user", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Unlink handles DELETE /api/partner.
func (h *PartnerHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	u := currentUser(w, r, h.userStore, h.logger)
	if u == nil {
		return
	}
	if u.PartnerID == nil {
		writeError(w, http.StatusNotFound, "no partner linked")
		return
	}

	audience := u.Audience()
	if err := h.userStore.Unlink(u.ID); err != nil {
		h.logger.Error("unlink partner", "user_id", u.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unlink partner")
		return
	}
	h.picks.Invalidate(r.Context(), audience...)
	h.hub.BroadcastTo(audience, ws.NewMessage(ws.TypePartnerUnlinked, u.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}
