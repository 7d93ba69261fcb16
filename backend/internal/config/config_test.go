package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("MARKET_REFRESH_CRON", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "@every 5m", cfg.MarketRefresh)
	assert.NotEmpty(t, cfg.DatabaseURL)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("FRONTEND_ORIGIN", "https://app.example.com")
	t.Setenv("MARKET_FEED_URL", "https://sheets.example.com/values")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://app.example.com", cfg.FrontendOrigin)
	assert.Equal(t, "https://sheets.example.com/values", cfg.MarketFeedURL)
}
