package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrack/backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/parceltrack")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres://localhost:5432/parceltrack", cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "public", cfg.StaticDir)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db:5432/parceltrack")
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://track.example.com, https://admin.example.com")
	t.Setenv("STATIC_DIR", "assets")
	t.Setenv("MAX_BODY_BYTES", "2048")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://track.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "assets", cfg.StaticDir)
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidMaxBodyBytes(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/parceltrack")

	for _, v := range []string{"abc", "0", "-5"} {
		t.Setenv("MAX_BODY_BYTES", v)
		_, err := config.Load()
		assert.Error(t, err, "MAX_BODY_BYTES=%s", v)
	}
}
