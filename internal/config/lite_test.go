package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 512, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	// Clear relevant env vars
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 512, cfg.CacheMaxItems)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	// Set environment variables
	os.Setenv("CKD_ENGINE_DATA_DIR", "/tmp/test-ckd")
	os.Setenv("CKD_ENGINE_CACHE_MAX_ITEMS", "256")
	os.Setenv("CKD_ENGINE_CACHE_TTL", "12h")
	os.Setenv("CKD_ENGINE_LOG_LEVEL", "debug")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-ckd", cfg.DataDir)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLiteConfig_ArchiveDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.ckd-risk-engine"}

	path := cfg.ArchiveDBPath()

	assert.Equal(t, "/home/user/.ckd-risk-engine/reports.db", path)
}

func TestLiteConfig_ExportDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.ckd-risk-engine"}

	path := cfg.ExportDir()

	assert.Equal(t, "/home/user/.ckd-risk-engine/exports", path)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "ckd")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	// Verify directories exist
	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"CKD_ENGINE_DATA_DIR",
		"CKD_ENGINE_CACHE_MAX_ITEMS",
		"CKD_ENGINE_CACHE_TTL",
		"CKD_ENGINE_LOG_LEVEL",
		"CKD_ENGINE_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
