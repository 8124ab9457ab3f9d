package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// devJWTSecret signs tokens when ENV=development and JWT_SECRET is unset.
const devJWTSecret = "mindlab-development-secret-do-not-use-in-prod"

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret            string        `mapstructure:"JWT_SECRET"`
	JWTIssuer            string        `mapstructure:"JWT_ISSUER"`
	AccessTokenTTL       time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	BcryptCost           int           `mapstructure:"BCRYPT_COST"`
	RBACCacheTTL         time.Duration `mapstructure:"RBAC_CACHE_TTL"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	LoginRateLimitPerMin int           `mapstructure:"LOGIN_RATE_LIMIT_PER_MIN"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CalendarCredentials  string        `mapstructure:"GOOGLE_CALENDAR_CREDENTIALS"`
	CalendarID           string        `mapstructure:"GOOGLE_CALENDAR_ID"`
	AMQPURL              string        `mapstructure:"AMQP_URL"`
	AMQPExchange         string        `mapstructure:"AMQP_EXCHANGE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "JWT_ISSUER", "ACCESS_TOKEN_TTL", "BCRYPT_COST", "RBAC_CACHE_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOGIN_RATE_LIMIT_PER_MIN",
	"REQUEST_TIMEOUT", "GOOGLE_CALENDAR_CREDENTIALS", "GOOGLE_CALENDAR_ID",
	"AMQP_URL", "AMQP_EXCHANGE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "mindlab-health")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("RBAC_CACHE_TTL", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOGIN_RATE_LIMIT_PER_MIN", 10)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")
	v.SetDefault("AMQP_EXCHANGE", "mindlab.events")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
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

// Validate checks that the configuration is safe to run. Outside development
// a real signing secret of at least 32 bytes is required.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDev() {
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set explicitly when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
		}
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.AccessTokenTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.RBACCacheTTL < 0 {
		return fmt.Errorf("RBAC_CACHE_TTL must not be negative")
	}
	return nil
}

// CalendarEnabled reports whether Google Calendar sync is configured.
func (c *Config) CalendarEnabled() bool {
	return c.CalendarCredentials != ""
}
