package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  rate_limit_per_sec: 25
  rate_limit_burst: 50
  cache_ttl_seconds: 30
database:
  driver: sqlite
  dsn: intake.db
media:
  photo_dir: /var/lib/intake/media
  report_dir: /var/lib/intake/reports
imei:
  result_ttl_seconds: 120
auth:
  session_file: /var/lib/intake/session.json
push:
  enabled: true
  vapid_public_key: pub
  vapid_private_key: priv
  subject: mailto:ops@example.com
worker_pool:
  size: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25.0, cfg.Server.RateLimitPerSec)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "intake.db", cfg.Database.DSN)
	assert.Equal(t, "/var/lib/intake/media", cfg.Media.PhotoDir)
	assert.Equal(t, 2*time.Minute, cfg.IMEI.ResultTTL)
	assert.Equal(t, "/var/lib/intake/session.json", cfg.Auth.SessionFile)
	assert.True(t, cfg.Push.Enabled)
	assert.Equal(t, 8, cfg.WorkerPool.Size)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: intake.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Server.RateLimitPerSec)
	assert.Equal(t, 5, cfg.Server.RateLimitBurst)
	assert.Equal(t, 60, cfg.Server.CacheTTLSeconds)
	assert.Equal(t, "./media", cfg.Media.PhotoDir)
	assert.Equal(t, "./reports", cfg.Media.ReportDir)
	assert.Equal(t, 10*time.Minute, cfg.IMEI.ResultTTL)
	assert.Equal(t, "./session.json", cfg.Auth.SessionFile)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}
