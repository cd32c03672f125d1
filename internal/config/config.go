package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is built once at startup and handed to the components that need it.
// Nothing mutates it after Load returns.
type Config struct {
	DatabaseURL string   `env:"DATABASE_URL" envDefault:"sqlite://data/yamdb.db"`
	RedisURL    string   `env:"REDIS_URL"`
	JWTSecret   string   `env:"JWT_SECRET"`
	ServerPort  string   `env:"SERVER_PORT" envDefault:":8080"`
	Environment string   `env:"ENVIRONMENT" envDefault:"development"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Rules Rules
	Mail  Mail

	// Rate limiting
	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"20"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitBlockTime   time.Duration `env:"RATE_LIMIT_BLOCK_TIME" envDefault:"5m"`
}

// Rules holds the domain limits shared by validation and services.
type Rules struct {
	TokenLifetime          time.Duration `env:"TOKEN_LIFETIME" envDefault:"336h"`
	ConfirmationCodeLength int           `env:"CONFIRMATION_CODE_LENGTH" envDefault:"64"`
	MinScore               int           `env:"MIN_SCORE" envDefault:"1"`
	MaxScore               int           `env:"MAX_SCORE" envDefault:"10"`
	MinYear                int           `env:"MIN_YEAR" envDefault:"1"`
	MaxUsernameLength      int           `env:"MAX_USERNAME_LENGTH" envDefault:"150"`
	MaxEmailLength         int           `env:"MAX_EMAIL_LENGTH" envDefault:"254"`
	PageSize               int           `env:"PAGE_SIZE" envDefault:"5"`
}

// Mail configures the confirmation-code notification channel.
// SMTP is used when SMTPHost is set, otherwise messages land in MailDir.
type Mail struct {
	From          string        `env:"EMAIL_FROM" envDefault:"noreply@yamdb.local"`
	SMTPHost      string        `env:"SMTP_HOST"`
	SMTPPort      string        `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string        `env:"SMTP_USER"`
	SMTPPassword  string        `env:"SMTP_PASSWORD"`
	MailDir       string        `env:"MAIL_DIR" envDefault:"data/sent_emails"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

// DefaultRules returns the limits used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		TokenLifetime:          14 * 24 * time.Hour,
		ConfirmationCodeLength: 64,
		MinScore:               1,
		MaxScore:               10,
		MinYear:                1,
		MaxUsernameLength:      150,
		MaxEmailLength:         254,
		PageSize:               5,
	}
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	// (Docker containers use environment variables directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	r := c.Rules
	if r.ConfirmationCodeLength <= 0 {
		return fmt.Errorf("CONFIRMATION_CODE_LENGTH must be positive, got %d", r.ConfirmationCodeLength)
	}
	if r.MinScore > r.MaxScore {
		return fmt.Errorf("MIN_SCORE (%d) is greater than MAX_SCORE (%d)", r.MinScore, r.MaxScore)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", r.PageSize)
	}
	if r.TokenLifetime <= 0 {
		return fmt.Errorf("TOKEN_LIFETIME must be positive, got %s", r.TokenLifetime)
	}
	if c.Mail.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.Mail.NotifyTimeout)
	}
	return nil
}
