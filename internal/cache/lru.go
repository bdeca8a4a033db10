package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/emrgen/wikistore/internal/doc"
)

const (
	DefaultDocumentCapacity = 1024
	DefaultExistsCapacity   = 8192
)

var _ DocumentCache = (*LRUDocumentCache)(nil)

// LRUDocumentCache keeps per-wiki LRU partitions in process memory.
type LRUDocumentCache struct {
	mu        sync.Mutex
	wikis     map[string]*wikiPartition
	docCap    int
	existsCap int
}

type wikiPartition struct {
	docs   *lru.Cache[int64, *doc.Document]
	exists *lru.Cache[int64, bool]
}

func NewLRUDocumentCache(docCap, existsCap int) *LRUDocumentCache {
	if docCap <= 0 {
		docCap = DefaultDocumentCapacity
	}
	if existsCap <= 0 {
		existsCap = DefaultExistsCapacity
	}
	return &LRUDocumentCache{
		wikis:     make(map[string]*wikiPartition),
		docCap:    docCap,
		existsCap: existsCap,
	}
}

func (c *LRUDocumentCache) partition(wiki string) (*wikiPartition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.wikis[wiki]; ok {
		return p, nil
	}
	docs, err := lru.New[int64, *doc.Document](c.docCap)
	if err != nil {
		return nil, err
	}
	exists, err := lru.New[int64, bool](c.existsCap)
	if err != nil {
		return nil, err
	}
	p := &wikiPartition{docs: docs, exists: exists}
	c.wikis[wiki] = p
	return p, nil
}

func (c *LRUDocumentCache) GetDocument(ctx context.Context, key doc.Key) (*doc.Document, bool) {
	p, err := c.partition(key.Wiki)
	if err != nil {
		return nil, false
	}
	return p.docs.Get(key.ID())
}

func (c *LRUDocumentCache) SetDocument(ctx context.Context, d *doc.Document) error {
	p, err := c.partition(d.Key.Wiki)
	if err != nil {
		return err
	}
	p.docs.Add(d.Key.ID(), d)
	p.exists.Add(d.Key.ID(), true)
	return nil
}

func (c *LRUDocumentCache) DeleteDocument(ctx context.Context, key doc.Key) error {
	p, err := c.partition(key.Wiki)
	if err != nil {
		return err
	}
	p.docs.Remove(key.ID())
	p.exists.Remove(key.ID())
	return nil
}

func (c *LRUDocumentCache) GetExists(ctx context.Context, key doc.Key) (bool, bool) {
	p, err := c.partition(key.Wiki)
	if err != nil {
		return false, false
	}
	return p.exists.Get(key.ID())
}

func (c *LRUDocumentCache) SetExists(ctx context.Context, key doc.Key, exists bool) error {
	p, err := c.partition(key.Wiki)
	if err != nil {
		return err
	}
	p.exists.Add(key.ID(), exists)
	return nil
}

func (c *LRUDocumentCache) FlushWiki(ctx context.Context, wiki string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.wikis, wiki)
	return nil
}

func (c *LRUDocumentCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wikis = make(map[string]*wikiPartition)
	return nil
}
