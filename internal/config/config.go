package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/parkpro/service-core-go/pkg/database"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/utilities"
)

// Config is the full service configuration, read from the environment.
type Config struct {
	HTTPAddr      string           `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	SnowflakeNode int64            `env:"SNOWFLAKE_NODE" envDefault:"1"`
	Log           utilities.Config `envPrefix:"LOG_"`
	Database      database.Config  `envPrefix:"DATABASE_"`
	Auth          Auth             `envPrefix:"AUTH_"`
	Recovery      Recovery         `envPrefix:"RECOVERY_"`
	SMTP          SMTP             `envPrefix:"SMTP_"`
	Notify        Notify           `envPrefix:"NOTIFY_"`
}

// Auth holds password hashing and access token settings.
type Auth struct {
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"12"`
	JWTSecret  string        `env:"JWT_SECRET"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"parkpro"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

// Recovery holds verification code settings.
type Recovery struct {
	CodeTTL       time.Duration `env:"CODE_TTL" envDefault:"5m"`
	CodeLength    int           `env:"CODE_LENGTH" envDefault:"4"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// SMTP holds outgoing mail settings. An empty Host disables delivery and
// messages are only logged.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Notify sizes the background delivery pool.
type Notify struct {
	Workers     int           `env:"WORKERS" envDefault:"4"`
	QueueSize   int           `env:"QUEUE_SIZE" envDefault:"64"`
	SendTimeout time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	// best effort: a missing .env just means real env or defaults are used
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the current environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Recovery.CodeLength < 1 {
		return fmt.Errorf("RECOVERY_CODE_LENGTH must be positive, got %d", c.Recovery.CodeLength)
	}
	if c.Recovery.CodeTTL <= 0 {
		return fmt.Errorf("RECOVERY_CODE_TTL must be positive, got %s", c.Recovery.CodeTTL)
	}
	if c.Notify.Workers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be positive, got %d", c.Notify.Workers)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}
