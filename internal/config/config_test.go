package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linkshelf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":30022", cfg.Server.Addr)
	assert.Equal(t, "linkshelf.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Zero(t, cfg.Session.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "plain", cfg.Auth.HashScheme)
	assert.True(t, cfg.Refresh.Enabled)
	assert.Equal(t, time.Minute, cfg.Refresh.Interval)
	assert.Equal(t, 30*24*time.Hour, cfg.Backup.Retention)
	assert.Empty(t, cfg.Server.OriginPatterns)
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_LINKSHELF_DB", "/var/lib/linkshelf/data.db")
	t.Setenv("TEST_LINKSHELF_S3_KEY", "AKIAEXAMPLE")
	path := writeConfig(t, `
server:
  addr: ":9000"
database:
  path: ${TEST_LINKSHELF_DB}
  busy_timeout: 2s
session:
  ttl: 24h
  sweep_interval: 5m
auth:
  hash_scheme: bcrypt
logging:
  level: debug
  format: json
backup:
  bucket: shelf-backups
  access_key: ${TEST_LINKSHELF_S3_KEY}
  retention: 168h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/linkshelf/data.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "bcrypt", cfg.Auth.HashScheme)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "shelf-backups", cfg.Backup.Bucket)
	assert.Equal(t, "AKIAEXAMPLE", cfg.Backup.AccessKey)
	assert.Equal(t, 7*24*time.Hour, cfg.Backup.Retention)
	// Unset keys keep their defaults.
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, "us-east-1", cfg.Backup.Region)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9000\"\n")
	t.Setenv("LINKSHELF_ADDR", ":9100")
	t.Setenv("LINKSHELF_DB_MAX_CONNS", "2")
	t.Setenv("LINKSHELF_SECURE_COOKIE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Session.SecureCookie)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"bad duration", "session:\n  ttl: forever\n", nil},
		{"negative ttl", "session:\n  ttl: -1h\n", nil},
		{"unknown scheme", "auth:\n  hash_scheme: md5\n", nil},
		{"zero pool", "database:\n  max_open_conns: 0\n", nil},
		{"empty path", "database:\n  path: \"\"\n", nil},
		{"bad yaml", "server: [\n", nil},
		{"negative retention", "backup:\n  retention: -1h\n", nil},
		{"bad bool env", "", map[string]string{"LINKSHELF_REFRESH_ENABLED": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
