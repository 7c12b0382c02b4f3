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
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644)
	require.NoError(t, err)
	return dir
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), cfg)
	assert.Equal(t, []string{"modules"}, cfg.ModulePaths)
	assert.Equal(t, 30*time.Second, cfg.HookTimeout.AsDuration())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := writeConfig(t, `
modulePaths:
  - /opt/conductor/modules
  - ./local-modules
excludeModules:
  - legacy
enableHotReload: true
hookTimeout: 5s
log:
  level: debug
  file: /var/log/conductor.log
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/conductor/modules", "./local-modules"}, cfg.ModulePaths)
	assert.Equal(t, []string{"legacy"}, cfg.ExcludeModules)
	assert.True(t, cfg.EnableHotReload)
	assert.Equal(t, 5*time.Second, cfg.HookTimeout.AsDuration())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/conductor.log", cfg.Log.File)
	// Unset values keep their defaults.
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	dir := writeConfig(t, "modulePaths: [unclosed")

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty level is valid", func(c *Config) { c.Log.Level = "" }, false},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"negative timeout", func(c *Config) { c.HookTimeout = Duration(-time.Second) }, true},
		{"blank exclude entry", func(c *Config) { c.ExcludeModules = []string{" "} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
