package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "logging:\n  level: debug\n"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 168*time.Hour, cfg.Outbox.Retention)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
server:
  port: 9000
database:
  host: db.internal
  port: 5433
embedding:
  enabled: true
  timeout: 500ms
`))
	t.Setenv("TRIAGE_SERVER_PORT", "9100")
	t.Setenv("TRIAGE_RATE_LIMIT_BURST", "5")
	t.Setenv("TRIAGE_OUTBOX_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "host=db.internal port=5433 user=triage password= dbname=triage sslmode=disable", cfg.Database.DSN())
	assert.True(t, cfg.Embedding.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Embedding.Timeout)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
notification:
  enabled: true
`))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification.smtp_host")

	cfg := &Config{Server: ServerConfig{Port: 0}, Outbox: OutboxConfig{BatchSize: 1, PollInterval: time.Second}}
	assert.Error(t, cfg.Validate())
}

func TestConversions(t *testing.T) {
	o := OutboxConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond, MaxRetries: 4}
	w := o.ToWorkerConfig()
	assert.Equal(t, 10, w.BatchSize)
	assert.Equal(t, 4, w.MaxRetries)

	r := RedisConfig{URL: "redis://x:6379/1", PoolSize: 3}
	assert.Equal(t, "redis://x:6379/1", r.ToBrokerConfig().URL)
	assert.Equal(t, 3, r.ToBrokerConfig().PoolSize)
}

func TestSealKeyBytes(t *testing.T) {
	key, err := SecurityConfig{}.SealKeyBytes()
	assert.NoError(t, err)
	assert.Nil(t, key)

	key, err = SecurityConfig{SealKey: strings.Repeat("ab", 32)}.SealKeyBytes()
	assert.NoError(t, err)
	assert.Len(t, key, 32)

	key, err = SecurityConfig{SealKey: strings.Repeat("k", 32)}.SealKeyBytes()
	assert.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("k", 32)), key)

	_, err = SecurityConfig{SealKey: "short"}.SealKeyBytes()
	assert.Error(t, err)
}
