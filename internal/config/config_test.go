package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("SESSION_IDLE_TIMEOUT", "")
	t.Setenv("COLOR_ASSIGNMENT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.SessionIdleTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionSweepInterval)
	assert.False(t, cfg.AutoCreateSessions)
	assert.Equal(t, ColorRandom, cfg.ColorAssignment)
	assert.Equal(t, 5000, cfg.Port())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_IDLE_TIMEOUT", "90s")
	t.Setenv("AUTO_CREATE_SESSIONS", "true")
	t.Setenv("COLOR_ASSIGNMENT", ColorRoundRobin)
	t.Setenv("SEND_BUFFER_SIZE", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:9090", cfg.Addr())
	assert.Equal(t, 90*time.Second, cfg.SessionIdleTimeout)
	assert.True(t, cfg.AutoCreateSessions)
	assert.Equal(t, ColorRoundRobin, cfg.ColorAssignment)
	assert.Equal(t, 16, cfg.SendBufferSize)
}

func TestLoadRejectsUnknownColorMode(t *testing.T) {
	t.Setenv("COLOR_ASSIGNMENT", "rainbow")

	_, err := Load()
	assert.ErrorContains(t, err, "COLOR_ASSIGNMENT")
}

func TestMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("MAX_MESSAGE_BYTES", "lots")
	t.Setenv("SESSION_SWEEP_INTERVAL", "soon")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1<<20, cfg.MaxMessageBytes)
	assert.Equal(t, 30*time.Minute, cfg.SessionSweepInterval)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("SPARKBOARD_URL", "http://relay:5000")
	t.Setenv("RECONNECT_ATTEMPTS", "3")

	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "http://relay:5000", cfg.BaseURL)
	assert.Equal(t, 3, cfg.ReconnectAttempts)
	assert.Equal(t, time.Second, cfg.ReconnectInterval)
}
