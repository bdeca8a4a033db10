package store

import (
	"fmt"

	"github.com/emrgen/wikistore/internal/cache"
	"github.com/emrgen/wikistore/internal/config"
)

// NewFromConfig builds the configured backend and wraps it with the document
// cache when enabled.
func NewFromConfig(cfg config.Config, mappings *MappingRegistry) (Store, error) {
	var backend Store
	switch cfg.Store.Backend {
	case "file":
		backend = NewFileStore(cfg.Store.Path, cfg.Store.AttachmentPath, cfg.Backlinks.Enabled)
	case "bolt":
		var err error
		backend, err = NewBoltStore(cfg.Store.Path, cfg.Backlinks.Enabled)
		if err != nil {
			return nil, err
		}
	case "", "gorm":
		db, err := config.GetDb(cfg)
		if err != nil {
			return nil, wrap(CodeMigrate, cfg.Store.DSN, "opening database", err)
		}
		backend, err = NewGormStore(db, cfg.Store.Codec, mappings, cfg.Backlinks.Enabled)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if !cfg.Cache.Enabled {
		return backend, nil
	}
	var docs cache.DocumentCache
	switch cfg.Cache.Backend {
	case "redis":
		docs = cache.NewRedisDocumentCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	default:
		docs = cache.NewLRUDocumentCache(cfg.Cache.DocumentCapacity, cfg.Cache.ExistsCapacity)
	}
	return NewCachedStore(backend, docs), nil
}
