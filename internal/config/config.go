package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced at load time;
// everything else falls back to a default suitable for local development.
type Config struct {
	Env    string // application environment (e.g. "development", "production")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret string // secret shared with the identity provider for HS256 access tokens

	StripeSecretKey     string // server-side key used to create checkout sessions
	StripeWebhookSecret string // signing secret for inbound payment events
	CheckoutSuccessURL  string // where the provider redirects after payment
	CheckoutCancelURL   string // where the provider redirects when the user backs out
	Currency            string // ISO currency code for every checkout

	Timezone      *time.Location // zone in which session start times are interpreted
	BookingWindow int            // number of upcoming occurrences that can be booked
	CancelCutoff  time.Duration  // cancellations close this long before the session starts
	PendingTTL    time.Duration  // pending reservations older than this are expired
	SweepInterval time.Duration  // how often the expiry sweep runs
	SweepBatch    int            // maximum reservations expired per sweep

	RetryAttempts int           // ledger conflict retries
	RetryBase     time.Duration // first backoff delay for ledger retries

	RabbitURL  string // broker URL; empty disables the confirmation queue
	NotifyMode string // "queue" publishes confirmations, "smtp" sends them inline

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// Load reads configuration values from the environment and returns a
// Config.  A .env file in the working directory is honoured when present.
// Missing required variables cause the program to exit with a fatal log
// message.
func Load() Config {
	_ = godotenv.Load() // a missing .env file is fine; real env vars still apply

	loc, err := time.LoadLocation(envStr("APP_TIMEZONE", "UTC"))
	if err != nil {
		log.Fatalf("invalid APP_TIMEZONE: %v", err)
	}

	cfg := Config{
		Env:    envStr("APP_ENV", "development"),
		Port:   envStr("APP_PORT", "8080"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		JWTSecret: must("JWT_SECRET"),

		StripeSecretKey:     must("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  must("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   must("CHECKOUT_CANCEL_URL"),
		Currency:            envStr("CHECKOUT_CURRENCY", "usd"),

		Timezone:      loc,
		BookingWindow: envInt("BOOKING_WINDOW", 4),
		CancelCutoff:  envDur("CANCEL_CUTOFF", 24*time.Hour),
		PendingTTL:    envDur("PENDING_TTL", 30*time.Minute),
		SweepInterval: envDur("SWEEP_INTERVAL", time.Minute),
		SweepBatch:    envInt("SWEEP_BATCH", 100),

		RetryAttempts: envInt("LEDGER_RETRY_ATTEMPTS", 4),
		RetryBase:     envDur("LEDGER_RETRY_BASE", 25*time.Millisecond),

		RabbitURL:  rabbitURL(),
		NotifyMode: envStr("NOTIFY_MODE", "queue"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envStr("SMTP_PORT", "587"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: envStr("SMTP_FROM", "bookings@localhost"),
	}
	clamp(&cfg)
	return cfg
}

// clamp replaces out-of-range tuning values with their defaults so the
// projector, the sweeper and the retry loop always have something to work
// with.
func clamp(cfg *Config) {
	if cfg.BookingWindow < 1 {
		log.Printf("BOOKING_WINDOW=%d is not positive; using 4", cfg.BookingWindow)
		cfg.BookingWindow = 4
	}
	if cfg.CancelCutoff < 0 {
		cfg.CancelCutoff = 0
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		log.Printf("SWEEP_INTERVAL=%s is not positive; using 1m", cfg.SweepInterval)
		cfg.SweepInterval = time.Minute
	}
	if cfg.SweepBatch < 1 {
		cfg.SweepBatch = 100
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 25 * time.Millisecond
	}
}

// rabbitURL accepts either RABBITMQ_URL or the older AMQP_URL name.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
