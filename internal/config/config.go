package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	Store     StoreConfig     `toml:"store"`
	Cache     CacheConfig     `toml:"cache"`
	Backlinks BacklinksConfig `toml:"backlinks"`
	Locks     LocksConfig     `toml:"locks"`
	// Wikis lists the virtual wikis served by this deployment. Background
	// jobs iterate over it.
	Wikis []string `toml:"wikis"`
}

type StoreConfig struct {
	// Backend selects the storage implementation: gorm, file or bolt.
	Backend string `toml:"backend"`
	// Driver selects the SQL driver for the gorm backend: sqlite or postgres.
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
	// Path is the root directory of the file backend, or the database file
	// of the bolt backend.
	Path           string `toml:"path"`
	AttachmentPath string `toml:"attachment_path"`
	// Codec compresses archive and attachment blobs: none, gzip, lz4 or
	// brotli.
	Codec string `toml:"codec"`
}

type CacheConfig struct {
	Enabled bool `toml:"enabled"`
	// Backend selects the cache implementation: lru or redis.
	Backend          string      `toml:"backend"`
	DocumentCapacity int         `toml:"document_capacity"`
	ExistsCapacity   int         `toml:"exists_capacity"`
	Redis            RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type BacklinksConfig struct {
	Enabled bool `toml:"enabled"`
}

type LocksConfig struct {
	// TTL is how long an advisory lock survives without renewal.
	TTL time.Duration `toml:"ttl"`
	// SweepSchedule is a cron expression for the lock sweeper.
	SweepSchedule string `toml:"sweep_schedule"`
}

func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: "gorm",
			Driver:  "sqlite",
			DSN:     ".tmp/wikistore.db",
			Path:    ".tmp/wikistore",
			Codec:   "gzip",
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "lru",
		},
		Backlinks: BacklinksConfig{Enabled: true},
		Locks: LocksConfig{
			TTL:           30 * time.Minute,
			SweepSchedule: "@every 10m",
		},
		Wikis: []string{"xwiki"},
	}
}

// LoadConfig reads the toml file at path when it exists and applies
// environment overrides on top of the defaults. A missing file is not an
// error; the defaults suit local development.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, err
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WIKISTORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("WIKISTORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("WIKISTORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("WIKISTORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("WIKISTORE_CODEC"); v != "" {
		cfg.Store.Codec = v
	}
	if v := os.Getenv("WIKISTORE_REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("WIKISTORE_CACHE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logrus.Warnf("invalid WIKISTORE_CACHE_ENABLED value %q", v)
		} else {
			cfg.Cache.Enabled = enabled
		}
	}
	if v := os.Getenv("WIKISTORE_BACKLINKS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logrus.Warnf("invalid WIKISTORE_BACKLINKS_ENABLED value %q", v)
		} else {
			cfg.Backlinks.Enabled = enabled
		}
	}
}

// GetDb opens the SQL database of the gorm backend.
func GetDb(cfg Config) (*gorm.DB, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.Store.DSN), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(cfg.Store.DSN), &gorm.Config{})
	}
}
