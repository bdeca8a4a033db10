package store

import (
	"context"

	"github.com/emrgen/wikistore/internal/cache"
	"github.com/emrgen/wikistore/internal/doc"
)

// NewCachedStore wraps a backend with a document cache. Reads are served from
// the cache when possible; writes go to the backend first and then evict so a
// stale entry can never outlive a successful write.
func NewCachedStore(delegate Store, docs cache.DocumentCache) *CachedStore {
	return &CachedStore{Store: delegate, docs: docs}
}

var _ Store = (*CachedStore)(nil)

type CachedStore struct {
	Store
	docs cache.DocumentCache
}

// Transaction runs against the backend directly. Code inside a transaction
// sees its own uncommitted writes; the cache only learns about documents
// through the decorated entry points.
func (c *CachedStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return c.Store.Transaction(ctx, f)
}

func (c *CachedStore) Exists(ctx context.Context, key doc.Key) (bool, error) {
	if exists, known := c.docs.GetExists(ctx, key); known {
		return exists, nil
	}
	exists, err := c.Store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if err := c.docs.SetExists(ctx, key, exists); err != nil {
		return exists, wrap(CodeCache, key.String(), "recording existence", err)
	}
	return exists, nil
}

func (c *CachedStore) LoadDocument(ctx context.Context, key doc.Key) (*doc.Document, error) {
	if cached, ok := c.docs.GetDocument(ctx, key); ok {
		d := cached.Copy()
		d.FromCache = true
		return d, nil
	}
	d, err := c.Store.LoadDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.IsNew {
		if err := c.docs.SetExists(ctx, key, false); err != nil {
			return d, wrap(CodeCache, key.String(), "recording absence", err)
		}
		return d, nil
	}
	if err := c.docs.SetDocument(ctx, d.Copy()); err != nil {
		return d, wrap(CodeCache, key.String(), "caching document", err)
	}
	return d, nil
}

// SaveDocument evicts even when the backend reports an error: a failed write
// leaves the stored state ambiguous (the file backend has no rollback, and an
// error can arrive after a commit), so the cached entry and the exists flag
// must both be forgotten rather than trusted.
func (c *CachedStore) SaveDocument(ctx context.Context, d *doc.Document) error {
	saveErr := c.Store.SaveDocument(ctx, d)
	if err := c.docs.DeleteDocument(ctx, d.Key); err != nil {
		if saveErr != nil {
			return saveErr
		}
		return wrap(CodeCache, d.Key.String(), "evicting document", err)
	}
	if saveErr != nil {
		return saveErr
	}
	if err := c.docs.SetExists(ctx, d.Key, true); err != nil {
		return wrap(CodeCache, d.Key.String(), "recording existence", err)
	}
	return nil
}

func (c *CachedStore) DeleteDocument(ctx context.Context, d *doc.Document) error {
	deleteErr := c.Store.DeleteDocument(ctx, d)
	if err := c.docs.DeleteDocument(ctx, d.Key); err != nil {
		if deleteErr != nil {
			return deleteErr
		}
		return wrap(CodeCache, d.Key.String(), "evicting document", err)
	}
	if deleteErr != nil {
		return deleteErr
	}
	if err := c.docs.SetExists(ctx, d.Key, false); err != nil {
		return wrap(CodeCache, d.Key.String(), "recording absence", err)
	}
	return nil
}

func (c *CachedStore) SaveAttachmentContent(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	saveErr := c.Store.SaveAttachmentContent(ctx, d, att)
	if err := c.evict(ctx, d.Key); err != nil && saveErr == nil {
		return err
	}
	return saveErr
}

func (c *CachedStore) DeleteAttachment(ctx context.Context, d *doc.Document, filename string) error {
	deleteErr := c.Store.DeleteAttachment(ctx, d, filename)
	if err := c.evict(ctx, d.Key); err != nil && deleteErr == nil {
		return err
	}
	return deleteErr
}

func (c *CachedStore) evict(ctx context.Context, key doc.Key) error {
	if err := c.docs.DeleteDocument(ctx, key); err != nil {
		return wrap(CodeCache, key.String(), "evicting document", err)
	}
	return nil
}

// FlushWiki drops the cache partition of one virtual wiki.
func (c *CachedStore) FlushWiki(ctx context.Context, wiki string) error {
	if err := c.docs.FlushWiki(ctx, wiki); err != nil {
		return wrap(CodeCache, wiki, "flushing wiki partition", err)
	}
	return nil
}

// Flush drops the whole cache.
func (c *CachedStore) Flush(ctx context.Context) error {
	if err := c.docs.Flush(ctx); err != nil {
		return wrap(CodeCache, "", "flushing cache", err)
	}
	return nil
}
