// Package config loads app configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Port is the HTTP listen port.
	Port string `mapstructure:"FUNDGATE_PORT"`
	// DBPath is the SQLite database file path.
	DBPath string `mapstructure:"FUNDGATE_DB_PATH"`
	// BaseURL is the canonical application URL (e.g. https://app.fundgate.app).
	BaseURL string `mapstructure:"FUNDGATE_BASE_URL"`
	// RootDomain is the bare platform domain (e.g. fundgate.app). Hosts under
	// it that are not platform subdomains are treated as tenant custom domains.
	RootDomain string `mapstructure:"FUNDGATE_ROOT_DOMAIN"`
	// Env is the application environment ("development" or "production").
	// Controls the Secure cookie flag and JSON log output.
	Env string `mapstructure:"FUNDGATE_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"FUNDGATE_LOG_LEVEL"`

	// SessionSecret signs session JWTs and magic-link checksums. Required.
	SessionSecret string `mapstructure:"FUNDGATE_SESSION_SECRET"`
	// AdminEmails is a comma-separated allow-list for the admin magic-link flow.
	AdminEmails string `mapstructure:"FUNDGATE_ADMIN_EMAILS"`
	// MarketingURL is where tenant-domain root requests land when no legacy
	// redirect rule matches.
	MarketingURL string `mapstructure:"FUNDGATE_MARKETING_URL"`

	// Email delivery (Resend).
	ResendAPIKey string `mapstructure:"FUNDGATE_RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"FUNDGATE_EMAIL_FROM"`

	// Stripe (ACH capital calls).
	StripeSecretKey     string `mapstructure:"FUNDGATE_STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"FUNDGATE_STRIPE_WEBHOOK_SECRET"`

	// Document object storage.
	S3Bucket    string `mapstructure:"FUNDGATE_S3_BUCKET"`
	S3Region    string `mapstructure:"FUNDGATE_S3_REGION"`
	S3Endpoint  string `mapstructure:"FUNDGATE_S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"FUNDGATE_S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"FUNDGATE_S3_SECRET_KEY"`
	// DocPassphrase encrypts documents at rest before upload.
	DocPassphrase string `mapstructure:"FUNDGATE_DOC_PASSPHRASE"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored; env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.AutomaticEnv()

	v.SetDefault("FUNDGATE_PORT", "8080")
	v.SetDefault("FUNDGATE_DB_PATH", "fundgate.db")
	v.SetDefault("FUNDGATE_BASE_URL", "http://localhost:8080")
	v.SetDefault("FUNDGATE_ROOT_DOMAIN", "fundgate.app")
	v.SetDefault("FUNDGATE_ENV", "development")
	v.SetDefault("FUNDGATE_LOG_LEVEL", "info")
	v.SetDefault("FUNDGATE_MARKETING_URL", "https://fundgate.app")
	v.SetDefault("FUNDGATE_EMAIL_FROM", "Fundgate <no-reply@fundgate.app>")
	v.SetDefault("FUNDGATE_S3_REGION", "us-east-1")

	// Bind explicitly so AutomaticEnv sees keys that are absent from .env.
	for _, key := range []string{
		"FUNDGATE_PORT", "FUNDGATE_DB_PATH", "FUNDGATE_BASE_URL",
		"FUNDGATE_ROOT_DOMAIN", "FUNDGATE_ENV", "FUNDGATE_LOG_LEVEL",
		"FUNDGATE_SESSION_SECRET", "FUNDGATE_ADMIN_EMAILS",
		"FUNDGATE_MARKETING_URL", "FUNDGATE_RESEND_API_KEY",
		"FUNDGATE_EMAIL_FROM", "FUNDGATE_STRIPE_SECRET_KEY",
		"FUNDGATE_STRIPE_WEBHOOK_SECRET", "FUNDGATE_S3_BUCKET",
		"FUNDGATE_S3_REGION", "FUNDGATE_S3_ENDPOINT",
		"FUNDGATE_S3_ACCESS_KEY", "FUNDGATE_S3_SECRET_KEY",
		"FUNDGATE_DOC_PASSPHRASE",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return errors.New("config: FUNDGATE_SESSION_SECRET is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return errors.New("config: FUNDGATE_BASE_URL is not a valid URL")
	}
	switch c.Env {
	case "development", "production":
	default:
		return errors.New("config: FUNDGATE_ENV must be development or production")
	}
	return nil
}

// Production reports whether the app runs in production mode.
func (c *Config) Production() bool { return c.Env == "production" }

// AppHost returns the host of the canonical application URL.
func (c *Config) AppHost() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// SignupHost is the platform's signup subdomain.
func (c *Config) SignupHost() string { return "signup." + c.RootDomain }

// LoginHost is the platform's admin-login subdomain.
func (c *Config) LoginHost() string { return "login." + c.RootDomain }

// WebhookHost receives vendor webhooks (Stripe).
func (c *Config) WebhookHost() string { return "hooks." + c.RootDomain }

// AdminAllowlist returns the normalized admin email allow-list.
func (c *Config) AdminAllowlist() []string {
	if strings.TrimSpace(c.AdminEmails) == "" {
		return nil
	}
	parts := strings.Split(c.AdminEmails, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
