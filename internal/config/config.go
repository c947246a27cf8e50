package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Reservation ReservationConfig
	Retry       RetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// ReservationConfig tunes the reservation lifecycle.
type ReservationConfig struct {
	HoldTTLSeconds        int
	SweepIntervalSeconds  int
	SweepLockTTLSeconds   int
	TokenLength           int
	StreamIntervalSeconds int
}

// RetryConfig bounds retries of transient store failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelayMS int
	MaxDelayMS  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "locker-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "lockers:"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", defaultJWTSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Reservation: ReservationConfig{
			HoldTTLSeconds:        getEnvAsInt("RESERVATION_HOLD_TTL_SECONDS", 900),
			SweepIntervalSeconds:  getEnvAsInt("RESERVATION_SWEEP_INTERVAL_SECONDS", 60),
			SweepLockTTLSeconds:   getEnvAsInt("RESERVATION_SWEEP_LOCK_TTL_SECONDS", 30),
			TokenLength:           getEnvAsInt("RESERVATION_TOKEN_LENGTH", 10),
			StreamIntervalSeconds: getEnvAsInt("RESERVATION_STREAM_INTERVAL_SECONDS", 5),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("STORE_RETRY_MAX_ATTEMPTS", 3),
			BaseDelayMS: getEnvAsInt("STORE_RETRY_BASE_DELAY_MS", 50),
			MaxDelayMS:  getEnvAsInt("STORE_RETRY_MAX_DELAY_MS", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST must be within [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Reservation.TokenLength < 8 || c.Reservation.TokenLength > 32 {
		errs = append(errs, errors.New("RESERVATION_TOKEN_LENGTH must be within [8,32]"))
	}
	if c.Reservation.HoldTTLSeconds <= 0 {
		errs = append(errs, errors.New("RESERVATION_HOLD_TTL_SECONDS must be positive"))
	}
	if c.Reservation.SweepIntervalSeconds <= 0 {
		errs = append(errs, errors.New("RESERVATION_SWEEP_INTERVAL_SECONDS must be positive"))
	}
	if c.Reservation.StreamIntervalSeconds <= 0 {
		errs = append(errs, errors.New("RESERVATION_STREAM_INTERVAL_SECONDS must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("STORE_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.App.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HoldTTL is how long an unconfirmed reservation survives before the sweep removes it.
func (r ReservationConfig) HoldTTL() time.Duration {
	return time.Duration(r.HoldTTLSeconds) * time.Second
}

func (r ReservationConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

func (r ReservationConfig) SweepLockTTL() time.Duration {
	if r.SweepLockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.SweepLockTTLSeconds) * time.Second
}

func (r ReservationConfig) StreamInterval() time.Duration {
	return time.Duration(r.StreamIntervalSeconds) * time.Second
}

func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
