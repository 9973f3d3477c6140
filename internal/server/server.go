package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tandem/internal/action"
	"github.com/dukerupert/tandem/internal/backup"
	"github.com/dukerupert/tandem/internal/badge"
	"github.com/dukerupert/tandem/internal/billing"
	"github.com/dukerupert/tandem/internal/cache"
	"github.com/dukerupert/tandem/internal/config"
	"github.com/dukerupert/tandem/internal/handler"
	"github.com/dukerupert/tandem/internal/invite"
	"github.com/dukerupert/tandem/internal/middleware"
	"github.com/dukerupert/tandem/internal/push"
	"github.com/dukerupert/tandem/internal/store"
	ws "github.com/dukerupert/tandem/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	db             *sql.DB
	cfg            config.Config
	hub            *ws.Hub
	healthH        *handler.HealthHandler
	authH          *handler.AuthHandler
	profileH       *handler.ProfileHandler
	surveyH        *handler.SurveyHandler
	actionH        *handler.ActionHandler
	challengeH     *handler.ChallengeHandler
	partnerH       *handler.PartnerHandler
	pushH          *handler.PushHandler
	billingH       *handler.BillingHandler
	backupH        *handler.BackupHandler
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	magicLinkStore *store.MagicLinkStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	pushService    *push.Service
	pushScheduler  *push.Scheduler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg config.Config, mailer handler.Mailer, picksCache cache.Cache, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)
	magicLinkStore := store.NewMagicLinkStore(db)
	surveyStore := store.NewSurveyStore(db)
	actionStore := store.NewActionStore(db)
	challengeStore := store.NewChallengeStore(db)
	badgeStore := store.NewBadgeStore(db)
	subStore := store.NewSubscriptionStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	picks := action.NewService(actionStore, surveyStore, subStore, picksCache, logger)
	awarder := badge.NewAwarder(userStore, actionStore, challengeStore, badgeStore)
	issuer := invite.NewIssuer(cfg.JWTSecret, invite.DefaultTTL)

	stripeClient := billing.NewClient(cfg.Stripe)
	processor := billing.NewProcessor(subStore, logger)
	processor.OnChange = func(userID int64) {
		picks.Invalidate(context.Background(), userID)
	}

	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, logger)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if pushSvc.Configured() {
		pushSched = push.NewScheduler(pushSvc, pushStore, userStore, challengeStore, picks, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushSched, logger.With("component", "push_handler"))
	}

	return &Server{
		db:             db,
		cfg:            cfg,
		hub:            hub,
		healthH:        handler.NewHealthHandler(db, backupMgr),
		authH:          handler.NewAuthHandler(userStore, sessionStore, magicLinkStore, mailer, cfg.SessionTTL, logger.With("component", "auth")),
		profileH:       handler.NewProfileHandler(userStore, subStore, badgeStore, picks, logger.With("component", "profile")),
		surveyH:        handler.NewSurveyHandler(surveyStore, userStore, picks, awarder, hub, mailer, cfg.AdminEmail, logger.With("component", "survey")),
		actionH:        handler.NewActionHandler(actionStore, userStore, subStore, picks, awarder, hub, logger.With("component", "action")),
		challengeH:     handler.NewChallengeHandler(challengeStore, userStore, subStore, awarder, hub, logger.With("component", "challenge")),
		partnerH:       handler.NewPartnerHandler(userStore, issuer, mailer, picks, hub, logger.With("component", "partner")),
		pushH:          pushH,
		billingH:       handler.NewBillingHandler(stripeClient, processor, userStore, subStore, cfg.BaseURL+"/settings", logger.With("component", "billing")),
		backupH:        handler.NewBackupHandler(backupMgr, backupStore, userStore, cfg.AdminEmail, logger.With("component", "backup")),
		userStore:      userStore,
		sessionStore:   sessionStore,
		magicLinkStore: magicLinkStore,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		pushService:    pushSvc,
		pushScheduler:  pushSched,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinkStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push notification scheduler, or nil when VAPID
// keys are not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// Hub returns the live update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthH.Health)
	outerMux.HandleFunc("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("POST /webhooks/stripe", s.billingH.Webhook)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, authRateLimit, authRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)

	// Profile
	mux.HandleFunc("GET /api/me", s.profileH.Me)
	mux.HandleFunc("PUT /api/me", s.profileH.UpdateMe)
	mux.HandleFunc("GET /api/badges", s.profileH.Badges)

	// Survey
	mux.HandleFunc("GET /api/survey/questions", s.surveyH.Questions)
	mux.HandleFunc("POST /api/survey", s.surveyH.Submit)
	mux.HandleFunc("GET /api/survey/summary", s.surveyH.Summary)

	// Actions
	mux.HandleFunc("GET /api/holiday", s.actionH.Holiday)
	mux.HandleFunc("GET /api/actions/today", s.actionH.Today)
	mux.HandleFunc("GET /api/actions/history", s.actionH.History)
	mux.HandleFunc("POST /api/actions/{id}/complete", s.actionH.Complete)
	mux.HandleFunc("DELETE /api/actions/{id}/completions/{completion_id}", s.actionH.DeleteCompletion)

	// Challenges
	mux.HandleFunc("GET /api/challenges", s.challengeH.List)
	mux.HandleFunc("POST /api/challenges/{id}/join", s.challengeH.Join)
	mux.HandleFunc("GET /api/challenges/{id}/progress", s.challengeH.Progress)
	mux.HandleFunc("POST /api/challenges/{id}/days/{day}/complete", s.challengeH.CompleteDay)

	// Partner
	mux.HandleFunc("POST /api/partner/invite", s.partnerH.Invite)
	mux.HandleFunc("POST /api/partner/accept", s.partnerH.Accept)
	mux.HandleFunc("DELETE /api/partner", s.partnerH.Unlink)

	// Push notifications (only when VAPID keys are configured)
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// Billing
	mux.HandleFunc("GET /api/billing", s.billingH.Status)
	mux.HandleFunc("POST /api/billing/checkout", s.billingH.Checkout)
	mux.HandleFunc("POST /api/billing/portal", s.billingH.Portal)

	// Backups (admin only)
	mux.HandleFunc("GET /api/admin/backups", s.backupH.List)
	mux.HandleFunc("POST /api/admin/backups", s.backupH.Run)
	mux.HandleFunc("GET /api/admin/backups/{id}/download", s.backupH.Download)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))
}
