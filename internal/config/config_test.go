package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "stallbook.db", cfg.DatabasePath)
	assert.Equal(t, "Europe/Madrid", cfg.TimeZone)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, []string{"00:05", "05:05"}, cfg.LifecycleTriggerTimes)
}

func TestParseEnv(t *testing.T) {
	t.Setenv("STALLBOOK_DB_PATH", "/tmp/sb.db")
	t.Setenv("STALLBOOK_REMOTE_ENDPOINT", "https://sync.example.com")
	t.Setenv("STALLBOOK_ONLINE_CHECK_INTERVAL", "7s")
	t.Setenv("STALLBOOK_LIFECYCLE_TRIGGERS", "01:00,06:00")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "/tmp/sb.db", cfg.DatabasePath)
	assert.Equal(t, "https://sync.example.com", cfg.RemoteEndpoint)
	assert.Equal(t, 7*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, []string{"01:00", "06:00"}, cfg.LifecycleTriggerTimes)
}

func TestParseEnvInvalidDurationIgnored(t *testing.T) {
	t.Setenv("STALLBOOK_SYNC_PUSH_INTERVAL", "soon")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	require.Equal(t, 200*time.Millisecond, cfg.SyncPushInterval)
}
