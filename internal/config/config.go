package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Security SecurityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// SecurityConfig holds the brute-force defense and session knobs.
type SecurityConfig struct {
	IPBlockThreshold     int           // failed attempts before an IP is blocked
	IPBlockDuration      time.Duration // how long a blocked IP stays blocked
	IPAttemptWindow      time.Duration // window over which IP failures are counted
	AccountLockThreshold int           // failed attempts before an account is locked
	SessionTTL           time.Duration // sliding session window
	SessionCookieMaxAge  time.Duration // cookie lifetime; session store is the source of truth
	LoginRateLimit       int           // login attempts per interval per IP
	LoginRateInterval    time.Duration
	EdgeRateLimit        int // transport-edge flood backstop; must exceed LoginRateLimit
	RateLimitMaxKeys     int // cap on distinct tracked keys before the map is dropped
	CleanupInterval      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "opsdesk"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Security: SecurityConfig{
			IPBlockThreshold:     getEnvAsInt("IP_BLOCK_THRESHOLD", 5),
			IPBlockDuration:      getEnvAsDuration("IP_BLOCK_DURATION", 15*time.Minute),
			IPAttemptWindow:      getEnvAsDuration("IP_ATTEMPT_WINDOW", 15*time.Minute),
			AccountLockThreshold: getEnvAsInt("ACCOUNT_LOCK_THRESHOLD", 5),
			SessionTTL:           getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			SessionCookieMaxAge:  getEnvAsDuration("SESSION_COOKIE_MAX_AGE", 24*time.Hour),
			LoginRateLimit:       getEnvAsInt("LOGIN_RATE_LIMIT", 5),
			LoginRateInterval:    getEnvAsDuration("LOGIN_RATE_INTERVAL", 1*time.Minute),
			EdgeRateLimit:        getEnvAsInt("EDGE_RATE_LIMIT", 120),
			RateLimitMaxKeys:     getEnvAsInt("RATE_LIMIT_MAX_KEYS", 500),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSecurity(&cfg.Security); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity rejects configurations that would disable the
// brute-force defenses outright.
func validateSecurity(sc *SecurityConfig) error {
	if sc.IPBlockThreshold < 1 {
		return fmt.Errorf("IP_BLOCK_THRESHOLD must be at least 1 (got %d)", sc.IPBlockThreshold)
	}
	if sc.AccountLockThreshold < 1 {
		return fmt.Errorf("ACCOUNT_LOCK_THRESHOLD must be at least 1 (got %d)", sc.AccountLockThreshold)
	}
	if sc.IPBlockDuration <= 0 {
		return fmt.Errorf("IP_BLOCK_DURATION must be positive")
	}
	if sc.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if sc.LoginRateLimit < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT must be at least 1 (got %d)", sc.LoginRateLimit)
	}
	// The login service answers throttled attempts with its own stable
	// code; the edge backstop may only shed traffic the service would
	// never see anyway.
	if sc.EdgeRateLimit <= sc.LoginRateLimit {
		return fmt.Errorf("EDGE_RATE_LIMIT (%d) must exceed LOGIN_RATE_LIMIT (%d)", sc.EdgeRateLimit, sc.LoginRateLimit)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
