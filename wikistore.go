// Package wikistore is the storage core of a wiki: versioned documents with
// typed objects and attachments, a revision archive, a link graph with
// backlink queries and advisory editing locks, served by interchangeable
// relational, flat-file and bolt backends.
package wikistore

import (
	"github.com/emrgen/wikistore/internal/config"
	"github.com/emrgen/wikistore/internal/store"
)

// Config is the deployment configuration, read from toml with environment
// overrides.
type Config = config.Config

// Store is the storage interface shared by all backends.
type Store = store.Store

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (Config, error) {
	return config.LoadConfig(path)
}

// Open builds the configured backend, migrates its schema and returns it
// ready for use.
func Open(cfg Config) (Store, error) {
	s, err := store.NewFromConfig(cfg, store.NewMappingRegistry())
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
