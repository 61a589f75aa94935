package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"tls://connect.ngs.global"}, cfg.Servers)
	assert.True(t, cfg.TLS)
	assert.True(t, cfg.PrivacyChecks)
	assert.Equal(t, DefaultMaxMessagesPerMinute, cfg.MaxMessagesPerMinute)
	assert.Equal(t, time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, -1, cfg.MaxReconnects)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRUEWATCH_SERVERS", "nats://a:4222, nats://b:4222")
	t.Setenv("TRUEWATCH_MAX_MESSAGES_PER_MINUTE", "120")
	t.Setenv("TRUEWATCH_PRIVACY_CHECKS", "false")
	t.Setenv("TRUEWATCH_HEARTBEAT_INTERVAL", "30s")
	t.Setenv("TRUEWATCH_CONTINENT", "SA")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Servers)
	assert.Equal(t, 120, cfg.MaxMessagesPerMinute)
	assert.False(t, cfg.PrivacyChecks)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "SA", cfg.Continent)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"servers:\n  - nats://file:4222\npublish_interval: 1m\nretention_days: 7\nprivacy_checks: false\n"), 0o600))
	t.Setenv("TRUEWATCH_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://file:4222"}, cfg.Servers)
	assert.Equal(t, time.Minute, cfg.PublishInterval)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.False(t, cfg.PrivacyChecks)
}

func TestFileOverlayConnectionSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"max_reconnects: 0\nreconnect_wait: 5s\nconnect_timeout: 3s\neviction_batch_size: 10\neviction_batch_delay: 50ms\n"), 0o600))
	t.Setenv("TRUEWATCH_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxReconnects, "an explicit zero must override the unlimited default")
	assert.Equal(t, 5*time.Second, cfg.ReconnectWait)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10, cfg.EvictionBatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.EvictionBatchDelay)
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retention_days: 7\n"), 0o600))
	t.Setenv("TRUEWATCH_CONFIG_FILE", path)
	t.Setenv("TRUEWATCH_RETENTION_DAYS", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.RetentionDays)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric int", "TRUEWATCH_MAX_MESSAGES_PER_MINUTE", "lots"},
		{"bad duration", "TRUEWATCH_HEARTBEAT_INTERVAL", "soon"},
		{"zero rate budget", "TRUEWATCH_MAX_MESSAGES_PER_MINUTE", "0"},
		{"unknown log level", "TRUEWATCH_LOG_LEVEL", "chatty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidateRequiresServers(t *testing.T) {
	cfg := defaults()
	cfg.Servers = nil
	assert.Error(t, cfg.Validate())
}

func TestRetentionWindow(t *testing.T) {
	cfg := &Config{RetentionDays: 3}
	assert.Equal(t, 72*time.Hour, cfg.RetentionWindow())
}
