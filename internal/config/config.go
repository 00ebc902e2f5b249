package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Troviny/troviny-backend/internal/security"
)

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
	Redis      RateLimitRedisConfig
}

// SweepConfig controls the background pruning of expired blacklist rows.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

type Config struct {
	App             AppConfig
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Argon2          security.Argon2Params
	DB              DBConfig
	RateLimit       RateLimitConfig
	Sweep           SweepConfig
}

func Load() (*Config, error) {
	appCfg, err := loadApp(os.Getenv("TROVINY_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:             *appCfg,
		JWTSecret:       envString("TROVINY_JWT_SECRET", ""),
		JWTIssuer:       envString("TROVINY_JWT_ISSUER", "troviny-api"),
		AccessTokenTTL:  envDuration("TROVINY_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: envDuration("TROVINY_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		Argon2: security.Argon2Params{
			Memory:      uint32(envInt("TROVINY_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("TROVINY_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("TROVINY_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("TROVINY_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("TROVINY_ARGON2_KEY_LENGTH", 32)),
		},
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "troviny"),
			User:     envString("POSTGRES_USER", "troviny"),
			Password: envString("POSTGRES_PASSWORD", "troviny"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		RateLimit: RateLimitConfig{
			LoginLimit: envInt("TROVINY_LOGIN_RATE_LIMIT", 10),
			Window:     envDuration("TROVINY_LOGIN_RATE_WINDOW", 1*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("TROVINY_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("TROVINY_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("TROVINY_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("TROVINY_RATE_LIMIT_REDIS_PREFIX", "troviny:auth:rl:"),
			},
		},
		Sweep: SweepConfig{
			Enabled:  envBool("TROVINY_TOKEN_SWEEP_ENABLED", true),
			Interval: envDuration("TROVINY_TOKEN_SWEEP_INTERVAL", 1*time.Hour),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("TROVINY_JWT_SECRET must be set")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
