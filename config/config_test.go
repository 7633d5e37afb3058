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
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("APP_TIMEZONE", "")
	t.Setenv("SQLITE_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.UsePostgres())
	assert.Empty(t, cfg.SQLite.Path)
	assert.True(t, cfg.Badges.CatalogBackfill)
	assert.Equal(t, 3, cfg.Badges.WriteMaxAttempts)
	assert.Equal(t, time.Local, cfg.App.Location)
	assert.True(t, cfg.Features.IsEnabled(FeatureUnlockEvents, "u1"))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")
	t.Setenv("BADGES_WRITE_MAX_ATTEMPTS", "5")
	t.Setenv("BADGES_CATALOG_BACKFILL", "false")
	t.Setenv("FEATURE_BADGES_SNAPSHOT_CACHE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 5, cfg.Badges.WriteMaxAttempts)
	assert.False(t, cfg.Badges.CatalogBackfill)
	assert.Equal(t, "UTC", cfg.App.Location.String())
	assert.False(t, cfg.Features.IsEnabled(FeatureSnapshotCache, ""))
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		App:           AppConfig{Environment: EnvProduction},
		Badges:        BadgesConfig{WriteMaxAttempts: 0, BreakerThreshold: 1},
		Observability: ObservabilityConfig{LogFormat: "xml"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "BADGES_WRITE_MAX_ATTEMPTS")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SKILLASCENT_TEST_VAR=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SKILLASCENT_TEST_VAR") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("SKILLASCENT_TEST_VAR"))
}

func TestFeatureFlags_RolloutAndOverrides(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.SetRolloutPercent(FeatureUnlockEvents, 0))
	assert.False(t, ff.IsEnabled(FeatureUnlockEvents, "u1"))

	ff.SetUserOverride("u1", FeatureUnlockEvents, true)
	assert.True(t, ff.IsEnabled(FeatureUnlockEvents, "u1"))
	assert.False(t, ff.IsEnabled(FeatureUnlockEvents, "u2"))

	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureUnlockEvents, 101), ErrInvalidRolloutPercent)

	require.NoError(t, ff.SetRolloutPercent(FeatureSkipUnchanged, 50))
	first := ff.IsEnabled(FeatureSkipUnchanged, "user-42")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureSkipUnchanged, "user-42"))
	}

	var nilFlags *FeatureFlags
	assert.False(t, nilFlags.IsEnabled(FeatureUnlockEvents, "u1"))
}
