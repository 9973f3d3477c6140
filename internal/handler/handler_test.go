package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/auth"
	"github.com/dukerupert/tandem/internal/badge"
	"github.com/dukerupert/tandem/internal/cache"
	"github.com/dukerupert/tandem/internal/database"
	"github.com/dukerupert/tandem/internal/invite"
	"github.com/dukerupert/tandem/internal/model"
	"github.com/dukerupert/tandem/internal/store"
	ws "github.com/dukerupert/tandem/internal/websocket"
)

type fakeMailer struct {
	mu        sync.Mutex
	codes     map[string]string
	invites   map[string]string
	summaries []string
	inviteErr error
	summErr   error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{codes: map[string]string{}, invites: map[string]string{}}
}

func (m *fakeMailer) SendAuthCode(to, code, purpose string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) SendPartnerInvite(to, inviterName, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inviteErr != nil {
		return m.inviteErr
	}
	m.invites[to] = token
	return nil
}

func (m *fakeMailer) SendSurveySummary(to string, user *model.User, sum *model.SurveySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, user.Email)
	return m.summErr
}

func (m *fakeMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type testEnv struct {
	db         *sql.DB
	users      *store.UserStore
	sessions   *store.SessionStore
	links      *store.MagicLinkStore
	surveys    *store.SurveyStore
	actions    *store.ActionStore
	challenges *store.ChallengeStore
	badges     *store.BadgeStore
	subs       *store.SubscriptionStore
	picks      *action.Service
	awarder    *badge.Awarder
	issuer     *invite.Issuer
	hub        *ws.Hub
	mailer     *fakeMailer
	logger     *slog.Logger
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		db:         db,
		users:      store.NewUserStore(db),
		sessions:   store.NewSessionStore(db, time.Hour),
		links:      store.NewMagicLinkStore(db),
		surveys:    store.NewSurveyStore(db),
		actions:    store.NewActionStore(db),
		challenges: store.NewChallengeStore(db),
		badges:     store.NewBadgeStore(db),
		subs:       store.NewSubscriptionStore(db),
		issuer:     invite.NewIssuer("test-secret-that-is-long-enough-123", time.Hour),
		hub:        ws.NewHub(logger),
		mailer:     newFakeMailer(),
		logger:     logger,
	}
	env.picks = action.NewService(env.actions, env.surveys, env.subs, cache.NewMemory(), logger)
	env.awarder = badge.NewAwarder(env.users, env.actions, env.challenges, env.badges)
	return env
}

func (e *testEnv) createUser(t *testing.T, email, name string) *model.User {
	t.Helper()
	u, err := e.users.Create(email, name, "US")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// newRequest builds a request acting as userID; zero means anonymous.
// pathValues are name/value pairs.
func newRequest(method, target, body string, userID int64, pathValues ...string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID}))
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

var errMailDown = errors.New("mail down")
