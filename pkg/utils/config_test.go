package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/pkg/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STOCKWATCH_CONFIG", "")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 60, cfg.Defaults.IntervalMinutes)
	assert.True(t, cfg.Defaults.AllStoresWhenEmpty)
	assert.Equal(t, "es-CR", cfg.Region.Locale)
	assert.Contains(t, cfg.Region.StoreNames, "Santa Ana")
	assert.Equal(t, "PriceSmart", cfg.DisplayName(models.Chain2))
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stockwatch.yaml")
	yml := `
httpAddr: ":9999"
proxyURL: "http://proxy.local"
fetch:
  timeout: 3s
  maxConcurrency: 2
defaults:
  enabled: false
  intervalMinutes: 15
chains:
  chain1: "AM"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("STOCKWATCH_PROXY_URL", "http://override.local")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "http://override.local", cfg.ProxyURL)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, 15, cfg.Defaults.IntervalMinutes)
	assert.False(t, cfg.Defaults.Enabled)
	assert.Equal(t, "AM", cfg.DisplayName(models.Chain1))
	assert.Equal(t, "PriceSmart", cfg.DisplayName(models.Chain2), "unset chains keep defaults")
}

func TestLoadConfigRejectsBadInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  intervalMinutes: 0\n"), 0o600))

	_, err := LoadConfig(path)
	var verr *models.ConfigValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "defaults.intervalMinutes", verr.Field)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadCORSOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORSOrigins = []string{"http://localhost:3000", "localhost:3000"}
	var verr *models.ConfigValidationError
	require.ErrorAs(t, cfg.Validate(), &verr)
	assert.Equal(t, "corsOrigins", verr.Field)

	cfg.CORSOrigins = []string{"*"}
	assert.NoError(t, cfg.Validate())
}
