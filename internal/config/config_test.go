package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/filestore"
	"github.com/koustreak/dbjoin/internal/joinpath"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbjoin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, joinpath.DefaultMaxDepth, cfg.Join.MaxDepth)
	assert.Equal(t, joinpath.DefaultMaxResults, cfg.Join.MaxResults)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 60*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 8, cfg.Database.FetchConcurrency)
	assert.False(t, cfg.FilestoreConfig().Enabled())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://app@localhost/shop
  schemas: [public, sales]
  query_timeout: 90s
  fetch_concurrency: 4
log:
  level: debug
  format: json
join:
  max_depth: 4
server:
  addr: 127.0.0.1:9090
filestore:
  endpoint: localhost:9000
  bucket: snapshots
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://app@localhost/shop", cfg.Database.DSN)
	assert.Equal(t, []string{"public", "sales"}, cfg.Database.Schemas)
	assert.Equal(t, 90*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Join.MaxDepth)
	assert.Equal(t, joinpath.DefaultMaxResults, cfg.Join.MaxResults, "unset keys keep defaults")
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)

	store := cfg.FilestoreConfig()
	assert.True(t, store.Enabled())
	assert.Equal(t, filestore.ProviderMinIO, store.Provider)
	assert.Equal(t, "snapshots", store.Bucket)

	db := cfg.DatabaseConfig()
	assert.Equal(t, 4, db.FetchConcurrency)
	assert.Equal(t, []string{"public", "sales"}, db.Schemas)
	assert.Equal(t, database.Driver(""), db.Driver, "left to DSN detection")

	assert.Equal(t, joinpath.Options{MaxDepth: 4, MaxResults: joinpath.DefaultMaxResults}, cfg.JoinOptions())
	assert.Equal(t, "json", cfg.LoggerConfig().Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: postgres://file/shop\n")
	t.Setenv("DBJOIN_DATABASE_DSN", "mysql://env/shop")
	t.Setenv("DBJOIN_DATABASE_DRIVER", "mariadb")
	t.Setenv("DBJOIN_JOIN_MAX_DEPTH", "3")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "mysql://env/shop", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Join.MaxDepth)
	assert.Equal(t, database.DriverMySQL, cfg.DatabaseConfig().Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.IsNotFound(err), "got %v", err)

	_, err = Load(New(), writeConfig(t, "database: [unclosed\n"))
	assert.True(t, errs.IsInvalidInput(err), "got %v", err)

	_, err = Load(New(), writeConfig(t, "join:\n  max_depth: 12\n"))
	assert.True(t, errs.IsInvalidInput(err), "got %v", err)
}

func validConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "console"},
		Join:   JoinConfig{MaxDepth: 6},
		Server: ServerConfig{Addr: ":8080"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"negative max conns", func(c *Config) { c.Database.MaxConns = -1 }},
		{"min above max", func(c *Config) { c.Database.MaxConns = 2; c.Database.MinConns = 3 }},
		{"negative concurrency", func(c *Config) { c.Database.FetchConcurrency = -1 }},
		{"negative timeout", func(c *Config) { c.Database.QueryTimeout = -time.Second }},
		{"negative server timeout", func(c *Config) { c.Server.WriteTimeout = -time.Second }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative depth", func(c *Config) { c.Join.MaxDepth = -1 }},
		{"depth above limit", func(c *Config) { c.Join.MaxDepth = joinpath.MaxDepthLimit + 1 }},
		{"negative results", func(c *Config) { c.Join.MaxResults = -5 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"bad filestore provider", func(c *Config) {
			c.Filestore.Endpoint = "localhost:9000"
			c.Filestore.Provider = "gcs"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.True(t, errs.IsInvalidInput(c.Validate()))
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "DBJOIN_DATABASE_DSN"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))

	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DBJOIN_DATABASE_DSN=mysql://app@db/shop\nDBJOIN_LOG_LEVEL=warn\n"), 0o644))
	t.Setenv("DBJOIN_LOG_LEVEL", "error")

	require.NoError(t, LoadEnvFile(""))
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "mysql://app@db/shop", cfg.Database.DSN)
	assert.Equal(t, "error", cfg.Log.Level, "variables already set win")
}

func TestLoadEnvFile_Missing(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.NoError(t, LoadEnvFile(""))
	err := LoadEnvFile("missing.env")
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}
