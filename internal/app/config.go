package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL for the product cache, empty disables caching" flag:"redis-url"`
	JWTSecret   string `usage:"HMAC secret for verifying auth tokens (STOREFRONT_JWT_SECRET)" flag:"jwt-secret"`
	StoreName   string `default:"Storefront" usage:"Store name used in customer emails" flag:"store-name"`

	SMTP           SMTPConfig
	Paymob         PaymobConfig
	Shipping       ShippingConfig
	AbandonedCarts AbandonedCartsConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// SMTPConfig controls the outgoing mail server. With an empty host the
// application logs emails instead of sending them.
type SMTPConfig struct {
	Host     string `usage:"SMTP server host, empty disables email sending"`
	Port     int    `default:"587" usage:"SMTP server port"`
	Username string `usage:"SMTP auth username"`
	Password string `usage:"SMTP auth password"`
	From     string `usage:"From address for outgoing mail"`
}

// PaymobConfig holds the Paymob Accept API credentials.
type PaymobConfig struct {
	APIKey        string `usage:"Paymob API key"`
	HMACSecret    string `usage:"Paymob webhook HMAC secret" flag:"paymob-hmac-secret"`
	IntegrationID int64  `usage:"Paymob card integration id" flag:"paymob-integration-id"`
	IframeID      string `usage:"Paymob hosted iframe id" flag:"paymob-iframe-id"`
	BaseURL       string `usage:"Paymob API base URL override, empty uses production" flag:"paymob-base-url"`
}

// ShippingConfig holds the carrier API credentials.
type ShippingConfig struct {
	BaseURL       string `usage:"Carrier API base URL, empty disables shipment booking" flag:"shipping-base-url"`
	APIKey        string `usage:"Carrier API key" flag:"shipping-api-key"`
	WebhookSecret string `usage:"Carrier webhook HMAC secret" flag:"shipping-webhook-secret"`
}

// AbandonedCartsConfig controls the reminder email background job.
type AbandonedCartsConfig struct {
	Enabled   bool          `default:"true" usage:"Enable the abandoned cart reminder job"`
	Interval  time.Duration `default:"6h"  usage:"Sweep interval"`
	Threshold time.Duration `default:"24h" usage:"Inactivity before a cart counts as abandoned"`
	Cooldown  time.Duration `default:"48h" usage:"Minimum time between reminders for the same cart"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set STOREFRONT_JWT_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
