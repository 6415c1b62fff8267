package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "abc123")
	t.Setenv("BOT_TOKEN", "110201543:token")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 12345, cfg.APIID)
	require.Equal(t, "abc123", cfg.APIHash)
	require.Equal(t, "110201543:token", cfg.BotToken)
	require.Equal(t, 5*time.Minute, cfg.LoginTimeout)
	require.Equal(t, 200, cfg.PageLimit)
	require.Equal(t, time.Second, cfg.ApproveDelay)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LOGIN_TIMEOUT_SECONDS", "60")
	t.Setenv("APPROVE_PAGE_LIMIT", "50")
	t.Setenv("APPROVE_DELAY_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, time.Minute, cfg.LoginTimeout)
	require.Equal(t, 50, cfg.PageLimit)
	require.Equal(t, 250*time.Millisecond, cfg.ApproveDelay)
}

func TestLoadMissingAPIID(t *testing.T) {
	setRequired(t)
	t.Setenv("API_ID", "")

	_, err := Load()
	require.EqualError(t, err, "config.Load: API_ID is required")
}

func TestLoadNonNumericAPIID(t *testing.T) {
	setRequired(t)
	t.Setenv("API_ID", "not-a-number")

	_, err := Load()
	require.ErrorContains(t, err, "API_ID must be an integer")
}

func TestLoadMissingAPIHash(t *testing.T) {
	setRequired(t)
	t.Setenv("API_HASH", "")

	_, err := Load()
	require.EqualError(t, err, "config.Load: API_HASH is required")
}

func TestLoadMissingBotToken(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	require.EqualError(t, err, "config.Load: BOT_TOKEN is required")
}

func TestLoadBadOptionalIntFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("APPROVE_PAGE_LIMIT", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 200, cfg.PageLimit)
}
