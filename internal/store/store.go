// Package store defines the storage backend contract for wiki documents and
// its three implementations: relational (GORM), flat-file and bbolt content
// repository, plus the caching decorator that can wrap any of them.
package store

import (
	"context"
	"io"
	"time"

	"github.com/emrgen/wikistore/internal/archive"
	"github.com/emrgen/wikistore/internal/doc"
)

type Store interface {
	DocumentStore
	ArchiveStore
	LockStore
	LinkStore
	AttachmentStore
	SearchStore
	// Transaction runs f against a store bound to one physical transaction.
	// Every write inside f commits or rolls back as a unit, so a document is
	// never left with a version that has no archive node or a half-replaced
	// link set.
	Transaction(ctx context.Context, f func(tx Store) error) error
	// Migrate prepares the backing schema, including tables declared by
	// registered custom mappings. Schema changes happen only here, never as
	// a side effect of saving a document.
	Migrate() error
	io.Closer
}

type DocumentStore interface {
	// Exists reports whether the document is present in storage.
	Exists(ctx context.Context, key doc.Key) (bool, error)
	// LoadDocument retrieves a document. An absent document is not an error:
	// the result is a marker with IsNew set.
	LoadDocument(ctx context.Context, key doc.Key) (*doc.Document, error)
	// LoadDocumentRevision materializes the document as it existed at the
	// given revision, via the archive.
	LoadDocumentRevision(ctx context.Context, key doc.Key, version doc.Version) (*doc.Document, error)
	// SaveDocument upserts the document, running version and date
	// bookkeeping, appending one archive node per dirty save and refreshing
	// the link set when backlink maintenance is enabled.
	SaveDocument(ctx context.Context, d *doc.Document) error
	// DeleteDocument removes the document with its objects, attachments and
	// link edges.
	DeleteDocument(ctx context.Context, d *doc.Document) error
	// ListClasses returns the class names known to a wiki.
	ListClasses(ctx context.Context, wiki string) ([]string, error)
}

type ArchiveStore interface {
	// LoadArchive retrieves the full revision chain of a document.
	LoadArchive(ctx context.Context, key doc.Key) (*archive.Archive, error)
	// ResetArchive discards the history and reseeds it with the current
	// state as the only revision. Administrative repair only.
	ResetArchive(ctx context.Context, d *doc.Document) error
}

type LockStore interface {
	// LoadLock returns the advisory lock for a document id, or nil.
	LoadLock(ctx context.Context, docID int64) (*doc.Lock, error)
	SaveLock(ctx context.Context, wiki string, lock *doc.Lock) error
	DeleteLock(ctx context.Context, lock *doc.Lock) error
	// ExpireLocks removes locks older than the cutoff and reports how many.
	ExpireLocks(ctx context.Context, wiki string, before time.Time) (int, error)
}

type LinkStore interface {
	// LoadLinks returns the outbound edge set of a document.
	LoadLinks(ctx context.Context, docID int64) ([]doc.Link, error)
	// SaveLinks replaces the document's edge set with the one extracted from
	// its current content. Delete-then-insert inside one transaction; no
	// reader observes a mixture of old and new edges.
	SaveLinks(ctx context.Context, d *doc.Document) error
	DeleteLinks(ctx context.Context, docID int64) error
	// LoadBacklinks returns the distinct source page full names whose edge
	// set contains the target.
	LoadBacklinks(ctx context.Context, wiki, target string) ([]string, error)
}

type AttachmentStore interface {
	LoadAttachmentContent(ctx context.Context, d *doc.Document, filename string) ([]byte, error)
	// SaveAttachmentContent writes the attachment payload and records it in
	// the attachment's revision chain.
	SaveAttachmentContent(ctx context.Context, d *doc.Document, att *doc.Attachment) error
	// DeleteAttachment removes the attachment together with its revision
	// chain.
	DeleteAttachment(ctx context.Context, d *doc.Document, filename string) error
	// LoadAttachmentArchive returns the attachment's revision chain, oldest
	// first. An attachment with no recorded history yields an empty chain.
	LoadAttachmentArchive(ctx context.Context, d *doc.Document, filename string) ([]doc.AttachmentRevision, error)
	// SaveAttachmentArchive records the attachment's current payload in its
	// revision chain without touching the live content.
	SaveAttachmentArchive(ctx context.Context, d *doc.Document, att *doc.Attachment) error
	// DeleteAttachmentArchive discards the revision chain, keeping the live
	// attachment.
	DeleteAttachmentArchive(ctx context.Context, d *doc.Document, filename string) error
}

type SearchStore interface {
	// Search runs a structured query fragment against the backend. Backends
	// without a query engine return CodeUnsupported.
	Search(ctx context.Context, query string, limit, offset int, params ...any) ([][]any, error)
	// SearchDocumentNames returns page full names matching a where-clause
	// fragment (relational) or every page of a wiki when the fragment is
	// empty.
	SearchDocumentNames(ctx context.Context, wiki, where string, limit, offset int, params ...any) ([]string, error)
}
