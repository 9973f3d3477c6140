package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/tandem/internal/auth"
	"github.com/dukerupert/tandem/internal/holiday"
	"github.com/dukerupert/tandem/internal/middleware"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
)

const maxCodeAttempts = 5

// Mailer is the outbound email surface the handlers use.
type Mailer interface {
	SendAuthCode(toEmail, code, purpose string, ttl time.Duration) error
	SendPartnerInvite(toEmail, inviterName, token string) error
	SendSurveySummary(toEmail string, user *model.User, sum *model.SurveySummary) error
}

type AuthHandler struct {
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	magicLinkStore *store.MagicLinkStore
	mailer         Mailer
	sessionTTL     time.Duration
	logger         *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, mls *store.MagicLinkStore, mailer Mailer, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		sessionStore:   ss,
		magicLinkStore: mls,
		mailer:         mailer,
		sessionTTL:     sessionTTL,
		logger:         logger,
	}
}

func normalizeEmail(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", false
	}
	return s, true
}

var codeSent = map[string]string{"status": "code_sent"}

// Register handles POST /auth/register. Existing accounts get the same
// response as new ones so addresses cannot be probed.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Country string `json:"country"`
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
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	country := holiday.ParseCountry(req.Country)
	if req.Country != "" && country == "" {
		writeError(w, http.StatusBadRequest, "country must be US or CA")
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusAccepted, codeSent)
		return
	}

	if _, err := h.userStore.Create(emailAddr, req.Name, string(country)); err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.sendCode(emailAddr, model.PurposeRegister)
	writeJSON(w, http.StatusAccepted, codeSent)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
	}
	if user != nil {
		h.sendCode(emailAddr, model.PurposeLogin)
	}
	writeJSON(w, http.StatusAccepted, codeSent)
}

func (h *AuthHandler) sendCode(emailAddr, purpose string) {
	_, code, err := h.magicLinkStore.Create(emailAddr, purpose)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		return
	}
	if err := h.mailer.SendAuthCode(emailAddr, code, purpose, store.CodeTTL); err != nil {
		h.logger.Error("send auth code", "error", err)
	}
}

// validateCode checks code against the latest pending code for emailAddr,
// counting failed attempts. On failure it returns a client-facing message.
func (h *AuthHandler) validateCode(emailAddr, code string) (*model.MagicLink, string) {
	latest, err := h.magicLinkStore.GetLatestByEmail(emailAddr)
	if err != nil {
		h.logger.Error("validate code lookup", "error", err)
		return nil, "internal error"
	}
	if latest == nil {
		return nil, "code has expired or already been used"
	}
	if latest.Attempts >= maxCodeAttempts {
		h.magicLinkStore.MarkUsed(latest.ID)
		return nil, "too many incorrect attempts, request a new code"
	}

	if !store.Matches(latest, code) {
		attempts, err := h.magicLinkStore.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.magicLinkStore.MarkUsed(latest.ID)
			return nil, "too many incorrect attempts, request a new code"
		}
		return nil, "incorrect code"
	}

	if err := h.magicLinkStore.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark used", "error", err)
		return nil, "internal error"
	}
	return latest, ""
}

// Verify handles POST /auth/verify and starts a session.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	emailAddr, ok := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if !ok || code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	ml, msg := h.validateCode(emailAddr, code)
	if msg == "internal error" {
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	if ml == nil {
		writeError(w, http.StatusUnauthorized, msg)
		return
	}

	user, err := h.userStore.GetByEmail(ml.Email)
	if err != nil || user == nil {
		h.logger.Error("verify user lookup", "email", ml.Email, "error", err)
		writeError(w, http.StatusUnauthorized, "account not found")
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"user":       user,
	})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := auth.SessionID(r.Context()); id != 0 {
		if err := h.sessionStore.Delete(id); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}
