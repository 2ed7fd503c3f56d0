package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, resolved once at startup.
// Handlers and services never read the environment directly.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Owner    OwnerConfig
	Redis    RedisConfig
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN assembles the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// AuthConfig contains token signing settings. Access and refresh tokens are
// keyed by independent secrets.
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// OwnerConfig contains the deployment-time owner identity and the licensing
// escape hatch. ForceSetup treats the installation as always configured.
type OwnerConfig struct {
	Email        string
	Password     string
	KeyMinLength int
	ForceSetup   bool
}

// RedisConfig contains optional redis settings for login rate limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load resolves configuration from environment variables with development
// defaults. In release mode the secrets and the owner identity are required.
func Load() (*Config, error) {
	release := os.Getenv("GIN_MODE") == "release"

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		},
		Auth: AuthConfig{
			AccessSecret:  getEnv("JWT_SECRET", "default_super_secret_key"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "default_refresh_secret_key"),
		},
		Owner: OwnerConfig{
			Email:    strings.ToLower(strings.TrimSpace(getEnv("OWNER_EMAIL", "owner@school.local"))),
			Password: getEnv("OWNER_PASSWORD", "change-me-on-first-boot"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}

	var err error
	if cfg.Auth.AccessTTL, err = getEnvDuration("JWT_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Auth.RefreshTTL, err = getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Owner.KeyMinLength, err = getEnvInt("OWNER_KEY_MIN_LENGTH", 8); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	cfg.Owner.ForceSetup = getEnvBool("FORCE_SETUP")

	if release {
		if os.Getenv("JWT_SECRET") == "" || os.Getenv("JWT_REFRESH_SECRET") == "" {
			return nil, fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET are required in release mode")
		}
		if os.Getenv("OWNER_EMAIL") == "" || os.Getenv("OWNER_PASSWORD") == "" {
			return nil, fmt.Errorf("OWNER_EMAIL and OWNER_PASSWORD are required in release mode")
		}
	}

	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

func getEnvBool(key string) bool {
	v := os.Getenv(key)
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
