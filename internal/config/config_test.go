package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Dispatch.Retention)
	assert.Equal(t, 15*time.Second, cfg.Reporter.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.Reporter.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Reporter.WriteTimeout)
	assert.True(t, cfg.Heartbeat.Enabled)
	assert.Len(t, cfg.Heartbeat.RetrySchedule, 5)
	assert.Equal(t, "loopback", cfg.Telephony.Driver)
	assert.True(t, cfg.Telephony.SendPermitted)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smsrelay.yaml")
	yaml := `
server:
  port: 9100
storage:
  driver: redis
  redis:
    addr: redis.local:6379
heartbeat:
  interval: 5m
  retry_schedule: ["10s", "20s"]
telephony:
  driver: gateway
  gateway:
    url: http://modem.local:8000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("SMSRELAY_TELEPHONY_SEND_PERMITTED", "false")
	t.Setenv("SMSRELAY_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "redis.local:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "smsrelay", cfg.Storage.Redis.Prefix)
	assert.Equal(t, 5*time.Minute, cfg.Heartbeat.Interval)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, cfg.Heartbeat.RetrySchedule)
	assert.Equal(t, "gateway", cfg.Telephony.Driver)
	assert.Equal(t, "http://modem.local:8000", cfg.Telephony.Gateway.URL)
	assert.False(t, cfg.Telephony.SendPermitted)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
