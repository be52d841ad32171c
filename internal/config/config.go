package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment    string   // ENV: production, development, etc.
	Port           string
	Host           string   // Raw HOST env (e.g. https://api.example.com)
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	TrustedProxies []string // peers whose X-Forwarded-For is honoured

	StoreDriver      string // postgres or memory
	PostgresURI      string
	DBMaxOpenConns   int
	DBMinIdleConns   int
	DBAcquireTimeout time.Duration // upper bound on storage work per request

	RedisURI string // empty disables Redis (in-process broker and limiter are used instead)

	LogLevel  string
	LogFormat string // text or json
}

const (
	defaultMaxOpenConns   = 10
	defaultMinIdleConns   = 1
	defaultAcquireTimeout = 5 * time.Second
)

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	maxOpen := getEnvInt("DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	minIdle := getEnvInt("DB_MIN_IDLE_CONNS", defaultMinIdleConns)
	if minIdle > maxOpen {
		minIdle = maxOpen
	}

	return &Config{
		Environment:      env,
		Port:             getEnv("PORT", "8080"),
		Host:             getEnv("HOST", "http://localhost:8080"),
		AllowedOrigins:   allowedOrigins,
		TrustedProxies:   parseOrigins(getEnv("TRUSTED_PROXIES", "")),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		PostgresURI:      getEnv("POSTGRES_URI", postgresURIFromParts()),
		DBMaxOpenConns:   maxOpen,
		DBMinIdleConns:   minIdle,
		DBAcquireTimeout: getEnvDuration("DB_ACQUIRE_TIMEOUT", defaultAcquireTimeout),
		RedisURI:         getEnv("REDIS_URI", ""),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// postgresURIFromParts builds a URI from the discrete DB_* variables used by
// older deployments. The password is escaped so it may contain any character.
func postgresURIFromParts() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	name := getEnv("DB_NAME", "fonoterapia")

	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	if user := os.Getenv("DB_USER"); user != "" {
		if pw := os.Getenv("DB_PASSWORD"); pw != "" {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.PostgresURI == "" {
			return fmt.Errorf("POSTGRES_URI is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want postgres or memory)", c.StoreDriver)
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return d
}
