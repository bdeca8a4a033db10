package cache

import (
	"context"

	"github.com/emrgen/wikistore/internal/doc"
)

// DocumentCache is a cache for documents, partitioned per wiki so that one
// virtual wiki can be flushed without disturbing the others. Implementations
// also keep a page-existence cache so repeated lookups of missing documents
// stay off the backend.
type DocumentCache interface {
	// GetDocument gets a document from the cache.
	GetDocument(ctx context.Context, key doc.Key) (*doc.Document, bool)
	// SetDocument sets a document in the cache.
	SetDocument(ctx context.Context, d *doc.Document) error
	// DeleteDocument deletes a document from the cache.
	DeleteDocument(ctx context.Context, key doc.Key) error
	// GetExists reports the cached existence of a document and whether the
	// answer is known at all.
	GetExists(ctx context.Context, key doc.Key) (exists, known bool)
	// SetExists records whether a document exists.
	SetExists(ctx context.Context, key doc.Key, exists bool) error
	// FlushWiki drops all entries of one wiki.
	FlushWiki(ctx context.Context, wiki string) error
	// Flush drops everything.
	Flush(ctx context.Context) error
}
