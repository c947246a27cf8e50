package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("RESERVATION_HOLD_TTL_SECONDS", "")
	t.Setenv("AUTH_BCRYPT_COST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 15*time.Minute, cfg.Reservation.HoldTTL())
	assert.Equal(t, 5*time.Second, cfg.Reservation.StreamInterval())
	assert.Equal(t, 10, cfg.Reservation.TokenLength)
	assert.Equal(t, "lockers:", cfg.Redis.KeyPrefix)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("RESERVATION_HOLD_TTL_SECONDS", "20")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("AUTH_BCRYPT_COST", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 20*time.Second, cfg.Reservation.HoldTTL())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, 4, cfg.Auth.BcryptCost)
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_DB")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:         AppConfig{Env: "development"},
			Auth:        AuthConfig{JWTSecret: defaultJWTSecret, BcryptCost: 10},
			Reservation: ReservationConfig{HoldTTLSeconds: 900, SweepIntervalSeconds: 60, TokenLength: 10, StreamIntervalSeconds: 5},
			Retry:       RetryConfig{MaxAttempts: 3},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"token too short":       func(c *Config) { c.Reservation.TokenLength = 5 },
		"token too long":        func(c *Config) { c.Reservation.TokenLength = 64 },
		"bcrypt cost too low":   func(c *Config) { c.Auth.BcryptCost = 1 },
		"zero hold ttl":         func(c *Config) { c.Reservation.HoldTTLSeconds = 0 },
		"zero stream interval":  func(c *Config) { c.Reservation.StreamIntervalSeconds = 0 },
		"no retry attempts":     func(c *Config) { c.Retry.MaxAttempts = 0 },
		"default secret in prd": func(c *Config) { c.App.Env = "production" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
