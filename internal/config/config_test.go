package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, SourceEmbedded, cfg.Data.Source)
	assert.Equal(t, "crosswalk", cfg.Data.Schema)
	assert.Equal(t, 3, cfg.Data.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Data.RetryBackoff)
	assert.Equal(t, 2020, cfg.Crosswalk.Vintage)
	assert.False(t, cfg.Crosswalk.FallbackToInput)
	assert.Equal(t, 4, cfg.Table.Concurrency)
	assert.False(t, cfg.Table.Strict)
	assert.Empty(t, cfg.Table.MissingText)
	assert.Empty(t, cfg.Metrics.Textfile)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
data:
  source: sqlite
  sqlite_path: /var/lib/zcta/ref.db
crosswalk:
  vintage: 2010
  fallback_to_input: true
table:
  strict: true
  missing_text: NA
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, SourceSQLite, cfg.Data.Source)
	assert.Equal(t, "/var/lib/zcta/ref.db", cfg.Data.SQLitePath)
	assert.Equal(t, 2010, cfg.Crosswalk.Vintage)
	assert.True(t, cfg.Crosswalk.FallbackToInput)
	assert.True(t, cfg.Table.Strict)
	assert.Equal(t, "NA", cfg.Table.MissingText)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Table.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  source: dir
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ZCTA_DATA_SOURCE", "postgres")
	t.Setenv("ZCTA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, SourcePostgres, cfg.Data.Source)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ZCTA_TABLE_CONCURRENCY", "16")
	t.Setenv("ZCTA_METRICS_TEXTFILE", "/tmp/zcta.prom")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Table.Concurrency)
	assert.Equal(t, "/tmp/zcta.prom", cfg.Metrics.Textfile)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	assert.ErrorContains(t, err, "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.Source = SourceEmbedded
	cfg.Crosswalk.Vintage = 2020
	cfg.Table.Concurrency = 4
	return cfg
}

func TestValidate_Sources(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"embedded", func(*Config) {}, ""},
		{"dir ok", func(c *Config) { c.Data.Source = SourceDir; c.Data.Dir = "/data" }, ""},
		{"dir missing", func(c *Config) { c.Data.Source = SourceDir }, "data.dir is required"},
		{"sqlite missing", func(c *Config) { c.Data.Source = SourceSQLite }, "data.sqlite_path is required"},
		{"postgres ok", func(c *Config) { c.Data.Source = SourcePostgres; c.Data.DatabaseURL = "postgres://localhost/zcta" }, ""},
		{"postgres missing", func(c *Config) { c.Data.Source = SourcePostgres }, "data.database_url is required"},
		{"unknown", func(c *Config) { c.Data.Source = "s3" }, "data.source must be one of"},
		{"negative retries", func(c *Config) { c.Data.RetryAttempts = -1 }, "data.retry_attempts must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Vintage(t *testing.T) {
	cfg := validDefaults()

	cfg.Crosswalk.Vintage = 2015
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crosswalk.vintage must be 2010 or 2020")

	cfg.Crosswalk.Vintage = 2010
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Table.Concurrency = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "table.concurrency must be between 1 and 256")

	cfg.Table.Concurrency = 257
	assert.Error(t, cfg.Validate())

	cfg.Table.Concurrency = 256
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := validDefaults()
	cfg.Data.Source = SourceDir
	cfg.Table.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.dir is required")
	assert.Contains(t, err.Error(), "table.concurrency")
}
