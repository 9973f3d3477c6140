package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/tandem/internal/backup"
	"github.com/dukerupert/tandem/internal/billing"
)

const envPrefix = "TANDEM_"

type Config struct {
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string

	JWTSecret  string
	SessionTTL time.Duration
	// AllowedOrigins are host patterns accepted for WebSocket upgrades.
	AllowedOrigins []string

	PostmarkToken string
	EmailFrom     string
	AdminEmail    string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	RedisURL string

	Stripe billing.Config
	Backup backup.Config
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Parse reads configuration from flags, falling back to TANDEM_* environment
// variables and then to defaults. Flags win over the environment.
func Parse(args []string) (Config, error) {
	var cfg Config
	var originList string

	flags := flag.NewFlagSet("tandem", flag.ContinueOnError)

	flags.IntVar(&cfg.Port, "port", envInt("PORT", 8080), "HTTP listen port")
	flags.StringVar(&cfg.DBPath, "db", env("DB_PATH", "tandem.db"), "SQLite database path")
	flags.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "text"), "text or json")
	flags.StringVar(&cfg.BaseURL, "base-url", env("BASE_URL", "http://localhost:8080"), "public URL used in emails")

	flags.StringVar(&cfg.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "secret for signing invitations (prefer env)")
	flags.DurationVar(&cfg.SessionTTL, "session-ttl", envDuration("SESSION_TTL", 90*24*time.Hour), "session lifetime")
	flags.StringVar(&originList, "allowed-origins", env("ALLOWED_ORIGINS", ""), "comma-separated WebSocket origin patterns")

	flags.StringVar(&cfg.PostmarkToken, "postmark-token", env("POSTMARK_TOKEN", ""), "Postmark server token")
	flags.StringVar(&cfg.EmailFrom, "email-from", env("EMAIL_FROM", "hello@tandem.app"), "sender address")
	flags.StringVar(&cfg.AdminEmail, "admin-email", env("ADMIN_EMAIL", ""), "address receiving survey summaries")

	flags.StringVar(&cfg.VAPIDPublicKey, "vapid-public-key", env("VAPID_PUBLIC_KEY", ""), "web push public key")
	flags.StringVar(&cfg.VAPIDPrivateKey, "vapid-private-key", env("VAPID_PRIVATE_KEY", ""), "web push private key")
	flags.StringVar(&cfg.VAPIDSubject, "vapid-subject", env("VAPID_SUBJECT", ""), "web push contact (mailto: or https:)")

	flags.StringVar(&cfg.RedisURL, "redis-url", env("REDIS_URL", ""), "Redis URL for the pick cache; empty uses memory")

	flags.StringVar(&cfg.Stripe.SecretKey, "stripe-secret-key", env("STRIPE_SECRET_KEY", ""), "Stripe secret key")
	flags.StringVar(&cfg.Stripe.WebhookSecret, "stripe-webhook-secret", env("STRIPE_WEBHOOK_SECRET", ""), "Stripe webhook signing secret")
	flags.StringVar(&cfg.Stripe.PriceID, "stripe-price-id", env("STRIPE_PRICE_ID", ""), "premium subscription price")

	flags.StringVar(&cfg.Backup.S3.Endpoint, "s3-endpoint", env("S3_ENDPOINT", ""), "S3-compatible endpoint")
	flags.StringVar(&cfg.Backup.S3.Bucket, "s3-bucket", env("S3_BUCKET", ""), "backup bucket")
	flags.StringVar(&cfg.Backup.S3.Region, "s3-region", env("S3_REGION", "auto"), "backup bucket region")
	flags.StringVar(&cfg.Backup.S3.AccessKey, "s3-access-key", env("S3_ACCESS_KEY", ""), "backup access key")
	flags.StringVar(&cfg.Backup.S3.SecretKey, "s3-secret-key", env("S3_SECRET_KEY", ""), "backup secret key")
	flags.StringVar(&cfg.Backup.S3.Prefix, "s3-prefix", env("S3_PREFIX", "backups/"), "object key prefix")
	flags.StringVar(&cfg.Backup.Passphrase, "backup-passphrase", env("BACKUP_PASSPHRASE", ""), "backup encryption passphrase (prefer env)")
	flags.DurationVar(&cfg.Backup.Interval, "backup-interval", envDuration("BACKUP_INTERVAL", 24*time.Hour), "time between backups")
	flags.IntVar(&cfg.Backup.RetentionDays, "backup-retention-days", envInt("BACKUP_RETENTION_DAYS", 30), "days to keep backups")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AllowedOrigins = splitList(originList)
	cfg.Stripe.SuccessURL = cfg.BaseURL + "/billing/success"
	cfg.Stripe.CancelURL = cfg.BaseURL + "/billing/cancel"

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret required (use -jwt-secret or TANDEM_JWT_SECRET)")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return errors.New("both VAPID keys are required to enable push")
	}
	return nil
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

// envInt and envDuration ignore unparseable values; the flag default then
// applies and the misconfiguration shows up in the startup log.
func envInt(key string, def int) int {
	n, err := strconv.Atoi(env(key, ""))
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(env(key, ""))
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
