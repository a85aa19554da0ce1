package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Store drivers
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Port        string `env:"PORT" envDefault:"8000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	// Storage
	StoreDriver       string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI          string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017/flowbase"`
	MongoTransactions bool   `env:"MONGODB_TRANSACTIONS" envDefault:"false"`
	RedisURL          string `env:"REDIS_URL"` // optional, enables cross-instance live events

	// Auth
	JWTSecret            string        `env:"JWT_SECRET"`
	AccessTokenExpiry    time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry   time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"20m"`

	// CORS and websocket origins, comma-separated
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Mail
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"2525"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"mail.taskmanager@example.com"`

	// Link previews
	LinkPreviewTimeout time.Duration `env:"LINK_PREVIEW_TIMEOUT" envDefault:"8s"`

	// Notification fan-out
	FanOutWorkers   int `env:"FANOUT_WORKERS" envDefault:"4"`
	FanOutQueueSize int `env:"FANOUT_QUEUE_SIZE" envDefault:"1024"`

	// Background jobs
	NotificationRetention time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
	CleanupCron           string        `env:"CLEANUP_CRON" envDefault:"0 3 * * *"`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that env parsing cannot
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreDriver)
	}
	if c.FanOutWorkers < 1 {
		return fmt.Errorf("FANOUT_WORKERS must be at least 1")
	}
	if _, err := cron.ParseStandard(c.CleanupCron); err != nil {
		return fmt.Errorf("CLEANUP_CRON %q: %w", c.CleanupCron, err)
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// MailEnabled reports whether an SMTP relay is configured
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}
