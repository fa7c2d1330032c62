package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string   `env:"DATABASE_URL"`
	Port               string   `env:"PORT" envDefault:"8080"`
	GoEnv              string   `env:"GO_ENV" envDefault:"development"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	Auth0Domain        string   `env:"AUTH0_DOMAIN"`
	Auth0Audience      string   `env:"AUTH0_AUDIENCE"`
	AWSRegion          string   `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSS3Bucket        string   `env:"AWS_S3_BUCKET"`
	AWSAccessKeyID     string   `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string   `env:"AWS_SECRET_ACCESS_KEY"`
	MigrationsURL      string   `env:"MIGRATIONS_URL"`
	NatsURL            string   `env:"NATS_URL"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Marketplace
	RequestTTL          time.Duration `env:"REQUEST_TTL" envDefault:"168h"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"5m"`
	LookupTokenSecret   string        `env:"LOOKUP_TOKEN_SECRET"`
	LookupTokenTTL      time.Duration `env:"LOOKUP_TOKEN_TTL" envDefault:"720h"`
	AllowContactLookup  bool          `env:"ALLOW_CONTACT_LOOKUP" envDefault:"true"`

	// Raffle
	RaffleDrawHour       int `env:"RAFFLE_DRAW_HOUR" envDefault:"20"`
	RaffleUTCOffsetHours int `env:"RAFFLE_UTC_OFFSET_HOURS" envDefault:"3"`
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", goEnv)
	if err := godotenv.Load(envFile); err != nil {
		// In production, environment variables are set directly
		// so it's okay if .env files don't exist
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("No .env file found, using system environment variables")
		}
	} else {
		log.Info().Str("file", envFile).Msg("Loaded configuration")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = cfg
	return cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && !c.IsTest() {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RequestTTL <= 0 {
		return fmt.Errorf("REQUEST_TTL must be positive")
	}
	if c.RaffleDrawHour < 0 || c.RaffleDrawHour > 23 {
		return fmt.Errorf("RAFFLE_DRAW_HOUR must be between 0 and 23")
	}
	if c.RaffleUTCOffsetHours < -12 || c.RaffleUTCOffsetHours > 14 {
		return fmt.Errorf("RAFFLE_UTC_OFFSET_HOURS must be between -12 and 14")
	}
	if c.IsProduction() && c.LookupTokenSecret == "" {
		return fmt.Errorf("LOOKUP_TOKEN_SECRET is required in production")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// RaffleLocation is the fixed-offset zone raffle periods and draw dates are computed in
func (c *Config) RaffleLocation() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.RaffleUTCOffsetHours), c.RaffleUTCOffsetHours*60*60)
}

// GetConfig returns the last loaded configuration
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}
