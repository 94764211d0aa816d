package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/timeline.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, "0 1 * * *", cfg.Sweeper.Schedule)
	assert.Equal(t, 30, cfg.Sweeper.WindowDays)
	assert.Equal(t, 8, cfg.Layout.StartHour)
	assert.Equal(t, float64(80), cfg.Layout.PxPerHour)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9090
  read_timeout: 5s
database:
  path: /var/lib/timeline/timeline.db
redis:
  addr: localhost:6379
  ttl: 1m
sweeper:
  schedule: "@daily"
  window_days: 7
layout:
  px_per_hour: 60
logger:
  format: console
`)
	t.Setenv("TIMELINE_SERVER_PORT", "7070")
	t.Setenv("LARK_APP_ID", "cli_abc")
	t.Setenv("LARK_APP_SECRET", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/var/lib/timeline/timeline.db", cfg.Database.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "@daily", cfg.Sweeper.Schedule)
	assert.Equal(t, 7, cfg.Sweeper.WindowDays)
	assert.Equal(t, float64(60), cfg.Layout.PxPerHour)
	assert.Equal(t, "cli_abc", cfg.Lark.AppID)
	assert.Equal(t, "secret", cfg.Lark.AppSecret)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, dir, ".env", "TIMELINE_REDIS_ADDR=cache:6379\n")
	t.Cleanup(func() { os.Unsetenv("TIMELINE_REDIS_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := writeFile(t, dir, "bad.yaml", "logger:\n  format: xml\n")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "logger.format")

	t.Setenv("LARK_APP_ID", "cli_abc")
	_, err = Load("")
	assert.ErrorContains(t, err, "lark.app_secret")
}

func TestToContainerConfig(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, cfg.Database.Path, cc.Database.Path)
	assert.Equal(t, cfg.Redis.KeyPrefix, cc.Cache.Prefix)
	assert.Equal(t, cfg.Sweeper.Schedule, cc.Sweeper.Schedule)
	assert.Equal(t, cfg.Layout.MinHeight, cc.Layout.MinHeight)

	lc := cfg.ToLoggerConfig()
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "stdout", lc.OutputPath)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
