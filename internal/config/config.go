package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the application.
type Config struct {
	Port          string     `env:"PORT"           envDefault:"8080"`
	BaseURL       string     `env:"BASE_URL"       envDefault:"http://localhost:8080"`
	CanonicalHost string     `env:"CANONICAL_HOST"`
	StaticDir     string     `env:"STATIC_DIR"`
	LogLevel      slog.Level `env:"LOG_LEVEL"      envDefault:"INFO"`

	// Optional backing services. Empty disables the features that use them.
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	Stripe   StripeConfig   `envPrefix:"STRIPE_"`
	SendGrid SendGridConfig `envPrefix:"SENDGRID_"`

	IntegrationName    string        `env:"INTEGRATION_NAME"     envDefault:"donate-web"`
	MigrationMarkerKey string        `env:"MIGRATION_MARKER_KEY" envDefault:"app"`
	MaxDonationCents   int64         `env:"MAX_DONATION_CENTS"   envDefault:"99999999"`
	CheckoutRateLimit  int           `env:"CHECKOUT_RATE_LIMIT"  envDefault:"10"`
	CheckoutRateWindow time.Duration `env:"CHECKOUT_RATE_WINDOW" envDefault:"1m"`
	ClaimTTL           time.Duration `env:"CLAIM_TTL"            envDefault:"72h"`
}

type StripeConfig struct {
	SecretKey        string        `env:"SECRET_KEY,notEmpty"`
	WebhookSecret    string        `env:"WEBHOOK_SECRET,notEmpty"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
}

type SendGridConfig struct {
	APIKey            string `env:"API_KEY,notEmpty"`
	FromEmail         string `env:"FROM_EMAIL,notEmpty"`
	FromName          string `env:"FROM_NAME"`
	ReceiptTemplateID string `env:"RECEIPT_TEMPLATE_ID,notEmpty"`
	FailureTemplateID string `env:"FAILURE_TEMPLATE_ID,notEmpty"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxDonationCents <= 0 {
		return errors.New("MAX_DONATION_CENTS must be positive")
	}
	if c.CheckoutRateLimit < 0 {
		return errors.New("CHECKOUT_RATE_LIMIT must not be negative")
	}
	if c.CheckoutRateWindow <= 0 {
		return errors.New("CHECKOUT_RATE_WINDOW must be positive")
	}
	if c.Stripe.WebhookTolerance <= 0 {
		return errors.New("STRIPE_WEBHOOK_TOLERANCE must be positive")
	}
	return nil
}
