package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sweep-only processes never sign JWTs, so loading config must not
// demand a signing secret.
func TestLoadWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWT.SecretKey)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 10*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 10, cfg.RateLimit.Threshold)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.Lockout.Threshold)
	assert.Equal(t, 7*24*time.Hour, cfg.Cleanup.OTPRetention)
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	t.Setenv("RATE_LIMIT_THRESHOLD", "0")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("RATE_LIMIT_THRESHOLD", "10")
	t.Setenv("LOCKOUT_THRESHOLD", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OTP_EXPIRY", "300s")
	t.Setenv("RATE_LIMIT_THRESHOLD", "3")
	t.Setenv("CLEANUP_INTERVAL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.OTP.Expiry)
	assert.Equal(t, 3, cfg.RateLimit.Threshold)
	assert.Equal(t, 30*time.Minute, cfg.Cleanup.Interval)
}
