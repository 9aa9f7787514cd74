package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10000, cfg.Tracker.TimeoutMs)
	assert.Equal(t, 10*time.Second, cfg.Tracker.Timeout())
	assert.Equal(t, 20*time.Millisecond, cfg.Tracker.PollInterval())
	assert.Equal(t, 3, cfg.Tracker.IdlePolls)
	assert.False(t, cfg.Tracker.Trace)
	assert.Equal(t, "rod", cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout())
	assert.Equal(t, "~/.config/navstatus", cfg.Storage.Path)
	assert.Equal(t, "navstatus.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, 30, cfg.History.RetentionDays)
	assert.Empty(t, cfg.History.ExcludeDomains)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
tracker:
  timeout_ms: 2500
  idle_polls: 5
browser:
  engine: chromedp
  headless: false
logging:
  level: "debug"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 2500*time.Millisecond, cfg.Tracker.Timeout())
	assert.Equal(t, 5, cfg.Tracker.IdlePolls)
	assert.Equal(t, "chromedp", cfg.Browser.Engine)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain defaults
	assert.Equal(t, 20, cfg.Tracker.PollIntervalMs)
	assert.Equal(t, 30000, cfg.Browser.NavigationTimeoutMs)
	assert.Equal(t, "~/.config/navstatus", cfg.Storage.Path)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644)
	require.NoError(t, err)

	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero timeout", "tracker:\n  timeout_ms: 0\n"},
		{"negative poll", "tracker:\n  poll_interval_ms: -1\n"},
		{"zero idle polls", "tracker:\n  idle_polls: 0\n"},
		{"unknown engine", "browser:\n  engine: webkit\n"},
		{"negative retention", "history:\n  retention_days: -3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(tt.yaml), 0644))

			_, err := Load(cfgPath)
			assert.Error(t, err)
		})
	}
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)

	// Should return defaults
	assert.Equal(t, 10000, cfg.Tracker.TimeoutMs)
	assert.Equal(t, "rod", cfg.Browser.Engine)

	// File should now exist on disk
	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	// File should be valid YAML loadable again
	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Tracker, cfg2.Tracker)
	assert.Equal(t, cfg.Browser, cfg2.Browser)
}

func TestLoadOrCreateLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
history:
  retention_days: 7
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.History.RetentionDays)
	// Other fields remain defaults
	assert.Equal(t, "navstatus.db", cfg.Storage.SQLiteFile)
}

func TestLoadWithExcludeDomains(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
history:
  exclude_domains:
    - "example.com"
    - "secret.org"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "secret.org"}, cfg.History.ExcludeDomains)
}

func TestTraceEnvOverridesFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tracker:\n  trace: false\n"), 0644))

	t.Setenv(TraceEnv, "true")
	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.True(t, cfg.Tracker.Trace)

	t.Setenv(TraceEnv, "sometimes")
	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestDBPathExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	p, err := cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "navstatus", "navstatus.db"), p)

	cfg.Storage.Path = "/var/lib/navstatus"
	p, err = cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/navstatus/navstatus.db", p)
}
