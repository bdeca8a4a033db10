package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gorm", cfg.Store.Backend)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "gzip", cfg.Store.Codec)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "lru", cfg.Cache.Backend)
	assert.True(t, cfg.Backlinks.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Locks.TTL)
	assert.Equal(t, []string{"xwiki"}, cfg.Wikis)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
}

func TestLoadConfig_TomlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikistore.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
wikis = ["xwiki", "docs"]

[store]
backend = "bolt"
path = "/var/lib/wikistore/pages.db"
codec = "lz4"

[cache]
enabled = false

[backlinks]
enabled = false
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/wikistore/pages.db", cfg.Store.Path)
	assert.Equal(t, "lz4", cfg.Store.Codec)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Backlinks.Enabled)
	assert.Equal(t, []string{"xwiki", "docs"}, cfg.Wikis)
	// untouched sections keep their defaults
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "@every 10m", cfg.Locks.SweepSchedule)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikistore.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[store]
backend = "gorm"
codec = "gzip"
`), 0644))

	t.Setenv("WIKISTORE_BACKEND", "file")
	t.Setenv("WIKISTORE_PATH", "/srv/wiki")
	t.Setenv("WIKISTORE_CODEC", "none")
	t.Setenv("WIKISTORE_REDIS_ADDR", "localhost:6379")
	t.Setenv("WIKISTORE_CACHE_ENABLED", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "/srv/wiki", cfg.Store.Path)
	assert.Equal(t, "none", cfg.Store.Codec)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadConfig_InvalidBoolEnvIgnored(t *testing.T) {
	t.Setenv("WIKISTORE_CACHE_ENABLED", "maybe")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.Cache.Enabled)
}
