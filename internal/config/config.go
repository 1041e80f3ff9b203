// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"authcore-service/internal/db"
	"authcore-service/internal/pkg/token"
)

// AppConfig holds application-wide configuration loaded from the environment.
type AppConfig struct {
	HTTPPort string

	PostgresDSN string
	Redis       db.RedisConfig

	Token token.Config

	RotationEnabled bool
	SweepInterval   time.Duration

	// Default tenant capacity policy when the tenant carries no override.
	TenantCapacityStrict bool

	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// Load reads configuration from the environment. A .env file is honored
// when present so local development does not need exported variables.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "postgres"),
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_NAME", "authcore"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	cfg := &AppConfig{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		PostgresDSN: dsn,
		Redis: db.RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Token: token.Config{
			PrivPath:   getEnv("JWT_PRIVATE_KEY_PATH", "secrets/jwt_private.pem"),
			PubPath:    getEnv("JWT_PUBLIC_KEY_PATH", "secrets/jwt_public.pem"),
			KID:        getEnv("JWT_KEY_ID", "authcore-1"),
			Issuer:     getEnv("JWT_ISSUER", "authcore"),
			Audience:   getEnv("JWT_AUDIENCE", "authcore-api"),
			AccessTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL: getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		RotationEnabled:      getEnvBool("REFRESH_ROTATION_ENABLED", true),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		TenantCapacityStrict: getEnvBool("TENANT_CAPACITY_STRICT", true),
		LoginRateLimit:       getEnvInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow:      getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
