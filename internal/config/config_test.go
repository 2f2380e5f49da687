package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestcal/internal/model"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
	assert.Equal(t, "UTC", cfg.Timezone)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
timezone: Asia/Seoul
api:
  base_url: https://contests.example.com/api/
timeframe: fortnight
cache:
  backend: memcached
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "https://contests.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, model.TimeframeThisMonth, cfg.Timeframe)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 20, cfg.UpcomingLimit)
	assert.Equal(t, DefaultPlatforms, cfg.Platforms)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Asia/Seoul", cfg.Location().String())
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Platforms = []string{"ATCODER"}
	cfg.Timeframe = model.TimeframeNext30Days
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ATCODER"}, loaded.Platforms)
	assert.Equal(t, model.TimeframeNext30Days, loaded.Timeframe)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "admin", loaded.BasicAuth.Username)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CONTESTCAL_LISTEN", ":9090")
	t.Setenv("CONTESTCAL_PLATFORMS", " leetcode, atcoder ,")
	t.Setenv("CONTESTCAL_UPCOMING_LIMIT", "5")
	t.Setenv("CONTESTCAL_API_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("CONTESTCAL_REFRESH", "")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, []string{"LEETCODE", "ATCODER"}, cfg.Platforms)
	assert.Equal(t, 5, cfg.UpcomingLimit)
	assert.Equal(t, 15, cfg.API.TimeoutSeconds)
	assert.Empty(t, cfg.RefreshCron)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CONTESTCAL_TIMEZONE=Asia/Tokyo\n"), 0o600))
	t.Setenv("CONTESTCAL_TIMEZONE", "")
	require.NoError(t, os.Unsetenv("CONTESTCAL_TIMEZONE"))

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "Asia/Tokyo", os.Getenv("CONTESTCAL_TIMEZONE"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())
	assert.Equal(t, time.UTC, cfg.Location())

	cfg = DefaultConfig()
	cfg.RefreshCron = "every so often"
	assert.Error(t, cfg.Validate())
}
