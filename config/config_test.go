package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clientbook")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CURRENCY", "zar")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "@hourly", cfg.OverdueSweepSchedule)
	assert.Equal(t, cfg.JWTSecret, cfg.JWTRefreshSecret)
	assert.Equal(t, "ZAR", cfg.Currency)
	assert.False(t, cfg.StellarVerifyPayments)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("AUTH_RATE_LIMIT", "0.5")
	t.Setenv("STELLAR_VERIFY_PAYMENTS", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 0.5, cfg.AuthRateLimit)
	assert.True(t, cfg.StellarVerifyPayments)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:     "postgres://localhost/clientbook",
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			AuthRateLimit:   1,
			AuthRateBurst:   1,
			Currency:        "USD",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"zero ttl", func(c *Config) { c.AccessTokenTTL = 0 }, "TTL"},
		{"bad currency", func(c *Config) { c.Currency = "DOLLARS" }, "CURRENCY"},
		{"bad receiving account", func(c *Config) { c.StellarAccount = "not-an-account" }, "STELLAR_RECEIVING_ACCOUNT"},
		{"receiving account", func(c *Config) { c.StellarAccount = keypair.MustRandom().Address() }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	log := NewLogger(&Config{LogLevel: "debug", LogFormat: "text"})
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log = NewLogger(&Config{LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}
