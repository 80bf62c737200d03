// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port     string `env:"PORT" env-default:"8080"`
	BaseURL  string `env:"BASE_URL" env-default:""`
	DBPath   string `env:"DB_PATH" env-default:"launchbase.db"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	LogJSON  bool   `env:"LOG_JSON" env-default:"false"`

	// TokenSecret signs email verification links. Required.
	TokenSecret string `env:"TOKEN_SECRET"`

	Stripe Stripe
	Email  Email
	Backup Backup
}

type Stripe struct {
	SecretKey         string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret     string `env:"STRIPE_WEBHOOK_SECRET"`
	ProPriceID        string `env:"STRIPE_PRO_PRICE_ID" env-default:"price_pro_monthly"`
	EnterprisePriceID string `env:"STRIPE_ENTERPRISE_PRICE_ID" env-default:"price_enterprise_monthly"`
}

type Email struct {
	PostmarkToken string `env:"POSTMARK_TOKEN"`
	FromEmail     string `env:"FROM_EMAIL"`
}

type Backup struct {
	S3Endpoint  string `env:"BACKUP_S3_ENDPOINT"`
	S3Bucket    string `env:"BACKUP_S3_BUCKET"`
	S3Region    string `env:"BACKUP_S3_REGION" env-default:"auto"`
	S3AccessKey string `env:"BACKUP_S3_ACCESS_KEY"`
	S3SecretKey string `env:"BACKUP_S3_SECRET_KEY"`
	Passphrase  string `env:"BACKUP_PASSPHRASE"`
	IntervalHrs int    `env:"BACKUP_INTERVAL_HOURS" env-default:"24"`
}

// Load reads configuration from the environment and applies derived
// defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}
	return &cfg, nil
}
