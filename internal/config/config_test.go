package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, CreditOptimistic, cfg.ModerationCreditPolicy)
	require.Equal(t, []int64{0, 100, 500, 1500, 5000, 15000}, cfg.LevelThresholds)
	require.Equal(t, uint(3), cfg.StorageRetryAttempts)
	require.Equal(t, 10*time.Second, cfg.StorageTimeout)
	require.Equal(t, 60, cfg.RateLimitRequests)
	require.Equal(t, 300, cfg.RateLimitIPRequests)
	require.Equal(t, "postgres://facebrasil:pw@postgres:5432/facebrasil?sslmode=disable", cfg.DatabaseDSN())
	require.Equal(t, "America/Sao_Paulo", cfg.Location().String())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("ADMIN_PASSWORD_HASH", "x")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("MODERATION_CREDIT_POLICY", "sometimes")

	_, err := Load()
	require.ErrorContains(t, err, "MODERATION_CREDIT_POLICY")
}

func TestLoadRejectsZeroIPRateLimit(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_IP_REQUESTS", "0")

	_, err := Load()
	require.ErrorContains(t, err, "RATE_LIMIT_IP_REQUESTS")
}

func TestTelegramFlagRequiresToken(t *testing.T) {
	setRequired(t)
	t.Setenv("FEATURE_TELEGRAM_ENABLED", "true")

	_, err := Load()
	require.ErrorContains(t, err, "TELEGRAM_BOT_TOKEN")
}

func TestParseThresholds(t *testing.T) {
	got, err := parseThresholds(" 0, 50 ,200")
	require.NoError(t, err)
	require.Equal(t, []int64{0, 50, 200}, got)

	_, err = parseThresholds("10,20")
	require.Error(t, err, "первый порог не 0")

	_, err = parseThresholds("0,100,100")
	require.Error(t, err, "не строго возрастают")

	_, err = parseThresholds("0,abc")
	require.Error(t, err)

	_, err = parseThresholds("")
	require.Error(t, err)
}
