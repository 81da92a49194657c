package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	Env                     string        `mapstructure:"ENV"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL                string        `mapstructure:"REDIS_URL"`
	CacheTTL                time.Duration `mapstructure:"CACHE_TTL"`
	AuthSigningKey          string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer              string        `mapstructure:"AUTH_ISSUER"`
	TemplateRegistryFile    string        `mapstructure:"TEMPLATE_REGISTRY_FILE"`
	MaxDocumentBytes        int64         `mapstructure:"MAX_DOCUMENT_BYTES"`
	UseDefaultMeasurePeriod bool          `mapstructure:"USE_DEFAULT_MEASURE_PERIOD"`
	MetricsEnabled          bool          `mapstructure:"METRICS_ENABLED"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT",
	"ENV",
	"LOG_LEVEL",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"REDIS_URL",
	"CACHE_TTL",
	"AUTH_SIGNING_KEY",
	"AUTH_ISSUER",
	"TEMPLATE_REGISTRY_FILE",
	"MAX_DOCUMENT_BYTES",
	"USE_DEFAULT_MEASURE_PERIOD",
	"METRICS_ENABLED",
	"REQUEST_TIMEOUT",
	"CORS_ORIGINS",
}

// Load reads the configuration from the environment and an optional .env
// file in the working directory. It does not validate; callers that need a
// database or signing key call Validate or RequireDatabase.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CACHE_TTL", time.Hour)
	v.SetDefault("MAX_DOCUMENT_BYTES", 10<<20)
	v.SetDefault("USE_DEFAULT_MEASURE_PERIOD", true)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("CORS_ORIGINS", []string{"*"})

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the settings every command depends on. Outside development
// a signing key is required so that bearer tokens are actually verified.
func (c *Config) Validate() error {
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive, got %d", c.MaxDocumentBytes)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	return nil
}

// RequireDatabase is Validate plus a DATABASE_URL check, for the commands
// that talk to Postgres.
func (c *Config) RequireDatabase() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}
