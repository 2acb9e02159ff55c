package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no stray .env applies.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Scraper.ConcurrentLimit)
	assert.Equal(t, 120*time.Second, cfg.Scraper.Timeout)
	assert.Equal(t, time.Second, cfg.Scraper.ContentionDelay)
	assert.Equal(t, "Mozilla/5.0 (X11; Linux x86_64)", cfg.Scraper.UserAgent)
	assert.Equal(t, StoreSQLite, cfg.Storage.Backend)
	assert.Equal(t, "redcat.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "products_src", cfg.Storage.Table)
	assert.Equal(t, "Redcat", cfg.Catalog.Vendor)
	assert.Equal(t, "Redcat", cfg.Catalog.CustomLabel)
	assert.Equal(t, "stream:catalog_records", cfg.Redis.Stream)
}

func TestLoadFromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("SCRAPER_CONCURRENT_LIMIT", "2")
	t.Setenv("SCRAPER_CONTENTION_DELAY", "250ms")
	t.Setenv("RAW_STORE", "Postgres")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Scraper.ConcurrentLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Scraper.ContentionDelay)
	assert.Equal(t, StorePostgres, cfg.Storage.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	content := "CATALOG_VENDOR=Acme\nOUTPUT_FORMAT=json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644))
	t.Setenv("OUTPUT_FORMAT", "csv")
	t.Cleanup(func() { os.Unsetenv("CATALOG_VENDOR") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Acme", cfg.Catalog.Vendor)
	// the process environment takes precedence over .env
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("SCRAPER_CONCURRENT_LIMIT", "many")
	t.Setenv("SCRAPER_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scraper.ConcurrentLimit)
	assert.Equal(t, 120*time.Second, cfg.Scraper.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero concurrency", func(c *Config) { c.Scraper.ConcurrentLimit = 0 }, "SCRAPER_CONCURRENT_LIMIT"},
		{"negative backoff", func(c *Config) { c.Scraper.ContentionDelay = -time.Second }, "SCRAPER_CONTENTION_DELAY"},
		{"unknown store", func(c *Config) { c.Storage.Backend = "duckdb" }, "RAW_STORE"},
		{"postgres without db", func(c *Config) {
			c.Storage.Backend = StorePostgres
			c.Database.DBName = ""
		}, "DB_NAME"},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, "OUTPUT_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
