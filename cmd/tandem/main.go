package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/tandem/internal/backup"
	"github.com/dukerupert/tandem/internal/cache"
	"github.com/dukerupert/tandem/internal/config"
	"github.com/dukerupert/tandem/internal/database"
	"github.com/dukerupert/tandem/internal/email"
	"github.com/dukerupert/tandem/internal/holiday"
	"github.com/dukerupert/tandem/internal/logging"
	"github.com/dukerupert/tandem/internal/push"
	"github.com/dukerupert/tandem/internal/server"
	"github.com/dukerupert/tandem/internal/store"
)

const cleanupInterval = time.Hour

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "vapid-keys":
			generateVAPIDKeys()
			return
		case "restore":
			if err := restore(args[1:]); err != nil {
				log.Fatalf("restore: %v", err)
			}
			return
		}
	}

	cfg, err := config.Parse(args)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	warnHolidayOverlaps(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var picksCache cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", "error", err)
		} else {
			defer rc.Close()
			picksCache = rc
		}
	}

	mailer := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom, cfg.BaseURL)
	if !mailer.Configured() {
		logger.Warn("postmark token not set; emails will fail")
	}

	srv := server.New(db, cfg, mailer, picksCache, logger)

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}

	go cleanupLoop(ctx, srv.SessionStore(), srv.MagicLinkStore(), srv, logger)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tandem listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// cleanupLoop purges expired sessions, sign-in codes and rate limit buckets.
func cleanupLoop(ctx context.Context, sessions *store.SessionStore, links *store.MagicLinkStore, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := sessions.DeleteExpired(); err != nil {
				logger.Error("cleanup sessions", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			if n, err := links.DeleteExpired(); err != nil {
				logger.Error("cleanup sign-in codes", "error", err)
			} else if n > 0 {
				logger.Debug("expired sign-in codes removed", "count", n)
			}
			srv.RateLimiter().Cleanup()
		}
	}
}

func warnHolidayOverlaps(logger *slog.Logger) {
	year := time.Now().Year()
	for _, country := range []holiday.Country{"", holiday.CountryUS, holiday.CountryCA} {
		for _, y := range []int{year, year + 1} {
			for _, c := range holiday.Overlaps(holiday.Defaults, country, y) {
				logger.Warn("holiday windows overlap; the first listed wins",
					"country", country, "year", c.Year, "first", c.First, "second", c.Second)
			}
		}
	}
}

func generateVAPIDKeys() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("generate keys: %v", err)
	}
	fmt.Printf("TANDEM_VAPID_PUBLIC_KEY=%s\nTANDEM_VAPID_PRIVATE_KEY=%s\n", pub, priv)
}

// restore downloads and decrypts a backup to a new database file. The
// running database is not touched.
func restore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	id := fs.Int64("id", 0, "backup id to restore")
	out := fs.String("out", "restored.db", "destination database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("-id is required")
	}

	cfg, err := config.Parse(fs.Args())
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	mgr := backup.NewManager(cfg.Backup, db, store.NewBackupStore(db), logger)
	if !mgr.Enabled() {
		return fmt.Errorf("backups are not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := mgr.Restore(ctx, *id, cfg.Backup.Passphrase, *out); err != nil {
		return err
	}
	fmt.Printf("backup %d restored to %s\n", *id, *out)
	return nil
}
