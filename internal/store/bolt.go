package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/emrgen/wikistore/internal/archive"
	"github.com/emrgen/wikistore/internal/doc"
	"github.com/emrgen/wikistore/internal/link"
)

var (
	bucketDocs  = []byte("store")
	bucketLocks = []byte("locks")
	bucketLinks = []byte("links")
)

// document bucket entry keys
const (
	keyMeta           = "meta"
	keyClass          = "class"
	keyArchive        = "archive"
	keyAttachMeta     = "attach-meta"
	prefixObject      = "obj/"
	prefixAttach      = "attach/"
	prefixAttachChain = "attach-history/"
)

// NewBoltStore opens the single-file content-repository backend.
func NewBoltStore(path string, backlinks bool) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, wrap(CodeMigrate, path, "opening bolt file", err)
	}
	return &BoltStore{db: db, backlinks: backlinks}, nil
}

var _ Store = (*BoltStore)(nil)

type BoltStore struct {
	db        *bolt.DB
	backlinks bool
}

// boltMeta is the JSON payload stored under the meta key of a document
// bucket. Class, objects and attachment payloads live in sibling entries.
type boltMeta struct {
	Key             doc.Key   `json:"key"`
	DefaultLanguage string    `json:"defaultLanguage,omitempty"`
	Title           string    `json:"title,omitempty"`
	Parent          string    `json:"parent,omitempty"`
	Format          string    `json:"format,omitempty"`
	Author          string    `json:"author,omitempty"`
	ContentAuthor   string    `json:"contentAuthor,omitempty"`
	Creator         string    `json:"creator,omitempty"`
	Comment         string    `json:"comment,omitempty"`
	MinorEdit       bool      `json:"minorEdit,omitempty"`
	Version         string    `json:"version"`
	Content         string    `json:"content"`
	CreationDate    time.Time `json:"creationDate"`
	Date            time.Time `json:"date"`
	ContentDate     time.Time `json:"contentDate"`
}

type boltLock struct {
	Wiki string    `json:"wiki"`
	Lock *doc.Lock `json:"lock"`
}

type boltEdges struct {
	Wiki  string     `json:"wiki"`
	Edges []doc.Link `json:"edges"`
}

func (b *BoltStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return f(&boltTxStore{s: b, tx: tx})
	})
}

func (b *BoltStore) Migrate() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketLocks, bucketLinks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return wrap(CodeMigrate, string(name), "creating bucket", err)
			}
		}
		return nil
	})
}

func (b *BoltStore) Close() error { return b.db.Close() }

func docBucketName(key doc.Key) string {
	name := key.Name
	if key.Language != "" {
		name += "." + key.Language
	}
	return name
}

func (b *BoltStore) docBucket(tx *bolt.Tx, key doc.Key, create bool) (*bolt.Bucket, error) {
	var bkt *bolt.Bucket = tx.Bucket(bucketDocs)
	if bkt == nil {
		if !create {
			return nil, nil
		}
		var err error
		bkt, err = tx.CreateBucketIfNotExists(bucketDocs)
		if err != nil {
			return nil, err
		}
	}
	for _, part := range []string{key.Wiki, key.Space, docBucketName(key)} {
		next := bkt.Bucket([]byte(part))
		if next == nil {
			if !create {
				return nil, nil
			}
			var err error
			next, err = bkt.CreateBucketIfNotExists([]byte(part))
			if err != nil {
				return nil, err
			}
		}
		bkt = next
	}
	return bkt, nil
}

// --- documents ---

func (b *BoltStore) Exists(ctx context.Context, key doc.Key) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, key, false)
		if err != nil {
			return err
		}
		found = bkt != nil && bkt.Get([]byte(keyMeta)) != nil
		return nil
	})
	if err != nil {
		return false, wrap(CodeLoadingDoc, key.String(), "checking document bucket", err)
	}
	return found, nil
}

func (b *BoltStore) LoadDocument(ctx context.Context, key doc.Key) (*doc.Document, error) {
	var d *doc.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		d, err = b.loadDocumentTx(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (b *BoltStore) loadDocumentTx(tx *bolt.Tx, key doc.Key) (*doc.Document, error) {
	bkt, err := b.docBucket(tx, key, false)
	if err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "opening document bucket", err)
	}
	if bkt == nil || bkt.Get([]byte(keyMeta)) == nil {
		return doc.New(key), nil
	}
	var meta boltMeta
	if err := json.Unmarshal(bkt.Get([]byte(keyMeta)), &meta); err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "decoding document meta", err)
	}
	version, err := doc.ParseVersion(meta.Version)
	if err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "decoding document version", err)
	}

	d := doc.New(key)
	d.IsNew = false
	d.DefaultLanguage = meta.DefaultLanguage
	d.Title = meta.Title
	d.Parent = meta.Parent
	d.Format = meta.Format
	d.Author = meta.Author
	d.ContentAuthor = meta.ContentAuthor
	d.Creator = meta.Creator
	d.Comment = meta.Comment
	d.MinorEdit = meta.MinorEdit
	d.Version = version
	d.Content = meta.Content
	d.CreationDate = meta.CreationDate
	d.Date = meta.Date
	d.ContentDate = meta.ContentDate

	if raw := bkt.Get([]byte(keyClass)); raw != nil {
		var cls doc.Class
		if err := json.Unmarshal(raw, &cls); err != nil {
			return nil, wrap(CodeLoadingClass, key.String(), "decoding class", err)
		}
		d.Class = &cls
	}
	if raw := bkt.Get([]byte(keyAttachMeta)); raw != nil {
		if err := json.Unmarshal(raw, &d.Attachments); err != nil {
			return nil, wrap(CodeLoadingAttachment, key.String(), "decoding attachment metadata", err)
		}
	}

	cursor := bkt.Cursor()
	prefix := []byte(prefixObject)
	for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
		var obj doc.Object
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, wrap(CodeLoadingObject, key.String(), "decoding object", err)
		}
		d.Objects[obj.ClassName] = append(d.Objects[obj.ClassName], &obj)
	}
	return d, nil
}

func (b *BoltStore) LoadDocumentRevision(ctx context.Context, key doc.Key, version doc.Version) (*doc.Document, error) {
	var rev *doc.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		current, err := b.loadDocumentTx(tx, key)
		if err != nil {
			return err
		}
		if current.IsNew {
			return wrap(CodeLoadingDoc, key.String(), "document has no revisions", nil)
		}
		ar, err := b.loadArchiveTx(tx, key)
		if err != nil {
			return err
		}
		rev, err = materializeRevision(current, ar, version)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

func (b *BoltStore) SaveDocument(ctx context.Context, d *doc.Document) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.saveDocumentTx(tx, d)
	})
}

func (b *BoltStore) saveDocumentTx(tx *bolt.Tx, d *doc.Document) error {
	if err := d.Key.Validate(); err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "invalid document key", err)
	}
	if d.Class != nil && d.Class.Mapping != nil {
		if err := d.Class.Mapping.Validate(d.Class); err != nil {
			return wrap(CodeMapping, d.Class.Name, "invalid custom mapping", err)
		}
	}
	dirty := d.IsNew || d.Dirty()
	d.Touch(d.Author, time.Now())

	bkt, err := b.docBucket(tx, d.Key, true)
	if err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "creating document bucket", err)
	}

	meta := boltMeta{
		Key:             d.Key,
		DefaultLanguage: d.DefaultLanguage,
		Title:           d.Title,
		Parent:          d.Parent,
		Format:          d.Format,
		Author:          d.Author,
		ContentAuthor:   d.ContentAuthor,
		Creator:         d.Creator,
		Comment:         d.Comment,
		MinorEdit:       d.MinorEdit,
		Version:         d.Version.String(),
		Content:         d.Content,
		CreationDate:    d.CreationDate,
		Date:            d.Date,
		ContentDate:     d.ContentDate,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "encoding document meta", err)
	}
	if err := bkt.Put([]byte(keyMeta), raw); err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "writing document meta", err)
	}

	if d.Class != nil {
		raw, err := json.Marshal(d.Class)
		if err != nil {
			return wrap(CodeSavingClass, d.Class.Name, "encoding class", err)
		}
		if err := bkt.Put([]byte(keyClass), raw); err != nil {
			return wrap(CodeSavingClass, d.Class.Name, "writing class", err)
		}
	}

	if err := deletePrefix(bkt, []byte(prefixObject)); err != nil {
		return wrap(CodeSavingObject, d.Key.String(), "clearing previous objects", err)
	}
	for _, className := range d.ObjectClassNames() {
		for _, obj := range d.Objects[className] {
			raw, err := json.Marshal(obj)
			if err != nil {
				return wrap(CodeSavingObject, d.Key.String(), "encoding object", err)
			}
			k := fmt.Sprintf("%s%s/%d", prefixObject, className, obj.Number)
			if err := bkt.Put([]byte(k), raw); err != nil {
				return wrap(CodeSavingObject, d.Key.String(), "writing object", err)
			}
		}
	}

	if err := b.writeAttachmentMeta(bkt, d); err != nil {
		return err
	}
	for _, att := range d.Attachments {
		if att.Content == nil {
			continue
		}
		if err := bkt.Put([]byte(prefixAttach+att.Filename), att.Content); err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "writing attachment payload", err)
		}
		if err := appendAttachmentRevisionBkt(bkt, att); err != nil {
			return err
		}
	}

	if dirty {
		ar, err := b.loadArchiveTx(tx, d.Key)
		if err != nil {
			return err
		}
		if err := ar.Update(d); err != nil {
			return wrap(CodeSavingArchive, d.Key.String(), "appending revision", err)
		}
		if err := b.storeArchiveTx(tx, ar); err != nil {
			return err
		}
		if b.backlinks {
			if err := b.saveLinksTx(tx, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BoltStore) writeAttachmentMeta(bkt *bolt.Bucket, d *doc.Document) error {
	if len(d.Attachments) == 0 {
		if err := bkt.Delete([]byte(keyAttachMeta)); err != nil {
			return wrap(CodeSavingAttachment, d.Key.String(), "clearing attachment metadata", err)
		}
		return nil
	}
	raw, err := json.Marshal(d.Attachments)
	if err != nil {
		return wrap(CodeSavingAttachment, d.Key.String(), "encoding attachment metadata", err)
	}
	if err := bkt.Put([]byte(keyAttachMeta), raw); err != nil {
		return wrap(CodeSavingAttachment, d.Key.String(), "writing attachment metadata", err)
	}
	return nil
}

func (b *BoltStore) DeleteDocument(ctx context.Context, d *doc.Document) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.deleteDocumentTx(tx, d)
	})
}

func (b *BoltStore) deleteDocumentTx(tx *bolt.Tx, d *doc.Document) error {
	root := tx.Bucket(bucketDocs)
	if root != nil {
		wiki := root.Bucket([]byte(d.Key.Wiki))
		if wiki != nil {
			space := wiki.Bucket([]byte(d.Key.Space))
			if space != nil {
				name := []byte(docBucketName(d.Key))
				if space.Bucket(name) != nil {
					if err := space.DeleteBucket(name); err != nil {
						return wrap(CodeDeletingDoc, d.Key.String(), "deleting document bucket", err)
					}
				}
			}
		}
	}
	id := []byte(strconv.FormatInt(d.Key.ID(), 10))
	if locks := tx.Bucket(bucketLocks); locks != nil {
		if err := locks.Delete(id); err != nil {
			return wrap(CodeDeletingLock, d.Key.String(), "deleting lock entry", err)
		}
	}
	if links := tx.Bucket(bucketLinks); links != nil {
		if err := links.Delete(id); err != nil {
			return wrap(CodeDeletingLinks, d.Key.String(), "deleting link entry", err)
		}
	}
	d.IsNew = true
	return nil
}

func (b *BoltStore) ListClasses(ctx context.Context, wiki string) ([]string, error) {
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.walkDocBuckets(tx, wiki, func(bkt *bolt.Bucket) error {
			raw := bkt.Get([]byte(keyClass))
			if raw == nil {
				return nil
			}
			var cls doc.Class
			if err := json.Unmarshal(raw, &cls); err != nil {
				return err
			}
			if !seen[cls.Name] {
				seen[cls.Name] = true
				names = append(names, cls.Name)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrap(CodeLoadingClass, wiki, "scanning classes", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *BoltStore) walkDocBuckets(tx *bolt.Tx, wiki string, f func(bkt *bolt.Bucket) error) error {
	root := tx.Bucket(bucketDocs)
	if root == nil {
		return nil
	}
	wikiBkt := root.Bucket([]byte(wiki))
	if wikiBkt == nil {
		return nil
	}
	return wikiBkt.ForEachBucket(func(space []byte) error {
		spaceBkt := wikiBkt.Bucket(space)
		return spaceBkt.ForEachBucket(func(name []byte) error {
			return f(spaceBkt.Bucket(name))
		})
	})
}

// --- archive ---

func (b *BoltStore) LoadArchive(ctx context.Context, key doc.Key) (*archive.Archive, error) {
	var ar *archive.Archive
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		ar, err = b.loadArchiveTx(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ar, nil
}

func (b *BoltStore) loadArchiveTx(tx *bolt.Tx, key doc.Key) (*archive.Archive, error) {
	bkt, err := b.docBucket(tx, key, false)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "opening document bucket", err)
	}
	if bkt == nil {
		return archive.New(key), nil
	}
	raw := bkt.Get([]byte(keyArchive))
	if raw == nil {
		return archive.New(key), nil
	}
	ar, err := archive.Unmarshal(raw)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "decoding archive", err)
	}
	return ar, nil
}

func (b *BoltStore) ResetArchive(ctx context.Context, d *doc.Document) error {
	ar := archive.New(d.Key)
	ar.Reset(d)
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.storeArchiveTx(tx, ar)
	})
}

func (b *BoltStore) storeArchiveTx(tx *bolt.Tx, ar *archive.Archive) error {
	bkt, err := b.docBucket(tx, ar.Key, true)
	if err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "creating document bucket", err)
	}
	raw, err := ar.Marshal()
	if err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "encoding archive", err)
	}
	if err := bkt.Put([]byte(keyArchive), raw); err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "writing archive", err)
	}
	return nil
}

// --- locks ---

func (b *BoltStore) LoadLock(ctx context.Context, docID int64) (*doc.Lock, error) {
	var lock *doc.Lock
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLocks)
		if bkt == nil {
			return nil
		}
		raw := bkt.Get([]byte(strconv.FormatInt(docID, 10)))
		if raw == nil {
			return nil
		}
		var entry boltLock
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		lock = entry.Lock
		return nil
	})
	if err != nil {
		return nil, wrap(CodeLoadingLock, "", "loading lock entry", err)
	}
	return lock, nil
}

func (b *BoltStore) SaveLock(ctx context.Context, wiki string, lock *doc.Lock) error {
	if lock.Token == "" {
		lock.Token = uuid.New().String()
	}
	if lock.Date.IsZero() {
		lock.Date = time.Now()
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketLocks)
		if err != nil {
			return wrap(CodeSavingLock, lock.Owner, "creating lock bucket", err)
		}
		raw, err := json.Marshal(boltLock{Wiki: wiki, Lock: lock})
		if err != nil {
			return wrap(CodeSavingLock, lock.Owner, "encoding lock entry", err)
		}
		if err := bkt.Put([]byte(strconv.FormatInt(lock.DocID, 10)), raw); err != nil {
			return wrap(CodeSavingLock, lock.Owner, "writing lock entry", err)
		}
		return nil
	})
}

func (b *BoltStore) DeleteLock(ctx context.Context, lock *doc.Lock) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLocks)
		if bkt == nil {
			return nil
		}
		if err := bkt.Delete([]byte(strconv.FormatInt(lock.DocID, 10))); err != nil {
			return wrap(CodeDeletingLock, lock.Owner, "deleting lock entry", err)
		}
		return nil
	})
}

func (b *BoltStore) ExpireLocks(ctx context.Context, wiki string, before time.Time) (int, error) {
	expired := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLocks)
		if bkt == nil {
			return nil
		}
		var stale [][]byte
		cursor := bkt.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var entry boltLock
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Wiki == wiki && entry.Lock != nil && entry.Lock.Date.Before(before) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := bkt.Delete(k); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, wrap(CodeDeletingLock, wiki, "expiring locks", err)
	}
	return expired, nil
}

// --- links ---

func (b *BoltStore) LoadLinks(ctx context.Context, docID int64) ([]doc.Link, error) {
	var edges []doc.Link
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLinks)
		if bkt == nil {
			return nil
		}
		raw := bkt.Get([]byte(strconv.FormatInt(docID, 10)))
		if raw == nil {
			return nil
		}
		var entry boltEdges
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		edges = entry.Edges
		return nil
	})
	if err != nil {
		return nil, wrap(CodeLoadingLinks, "", "loading link entry", err)
	}
	return edges, nil
}

func (b *BoltStore) SaveLinks(ctx context.Context, d *doc.Document) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.saveLinksTx(tx, d)
	})
}

func (b *BoltStore) saveLinksTx(tx *bolt.Tx, d *doc.Document) error {
	bkt, err := tx.CreateBucketIfNotExists(bucketLinks)
	if err != nil {
		return wrap(CodeSavingLinks, d.Key.String(), "creating link bucket", err)
	}
	id := []byte(strconv.FormatInt(d.Key.ID(), 10))
	edges := link.Edges(d)
	if len(edges) == 0 {
		if err := bkt.Delete(id); err != nil {
			return wrap(CodeSavingLinks, d.Key.String(), "clearing link entry", err)
		}
		return nil
	}
	raw, err := json.Marshal(boltEdges{Wiki: d.Key.Wiki, Edges: edges})
	if err != nil {
		return wrap(CodeSavingLinks, d.Key.String(), "encoding link entry", err)
	}
	if err := bkt.Put(id, raw); err != nil {
		return wrap(CodeSavingLinks, d.Key.String(), "writing link entry", err)
	}
	return nil
}

func (b *BoltStore) DeleteLinks(ctx context.Context, docID int64) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLinks)
		if bkt == nil {
			return nil
		}
		if err := bkt.Delete([]byte(strconv.FormatInt(docID, 10))); err != nil {
			return wrap(CodeDeletingLinks, "", "deleting link entry", err)
		}
		return nil
	})
}

func (b *BoltStore) LoadBacklinks(ctx context.Context, wiki, target string) ([]string, error) {
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLinks)
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			var entry boltEdges
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Wiki != wiki {
				return nil
			}
			for _, e := range entry.Edges {
				if e.Target == target && !seen[e.SourceFullName] {
					seen[e.SourceFullName] = true
					names = append(names, e.SourceFullName)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrap(CodeLoadingLinks, target, "scanning backlinks", err)
	}
	sort.Strings(names)
	return names, nil
}

// --- attachments ---

func (b *BoltStore) LoadAttachmentContent(ctx context.Context, d *doc.Document, filename string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, d.Key, false)
		if err != nil {
			return err
		}
		if bkt == nil {
			return nil
		}
		if raw := bkt.Get([]byte(prefixAttach + filename)); raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "reading attachment payload", err)
	}
	if data == nil {
		return nil, wrap(CodeLoadingAttachment, filename, "attachment not found", nil)
	}
	return data, nil
}

func (b *BoltStore) SaveAttachmentContent(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, d.Key, true)
		if err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "creating document bucket", err)
		}
		if err := bkt.Put([]byte(prefixAttach+att.Filename), att.Content); err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "writing attachment payload", err)
		}
		if err := appendAttachmentRevisionBkt(bkt, att); err != nil {
			return err
		}
		return b.writeAttachmentMeta(bkt, d)
	})
}

func (b *BoltStore) DeleteAttachment(ctx context.Context, d *doc.Document, filename string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, d.Key, false)
		if err != nil {
			return wrap(CodeDeletingAttachment, filename, "opening document bucket", err)
		}
		if bkt == nil {
			return nil
		}
		for _, k := range []string{prefixAttach + filename, prefixAttachChain + filename} {
			if err := bkt.Delete([]byte(k)); err != nil {
				return wrap(CodeDeletingAttachment, filename, "deleting attachment payload", err)
			}
		}
		d.RemoveAttachment(filename)
		return b.writeAttachmentMeta(bkt, d)
	})
}

// --- attachment archive ---

func loadAttachmentArchiveBkt(bkt *bolt.Bucket, filename string) ([]doc.AttachmentRevision, error) {
	raw := bkt.Get([]byte(prefixAttachChain + filename))
	if raw == nil {
		return nil, nil
	}
	var chain []doc.AttachmentRevision
	if err := json.Unmarshal(raw, &chain); err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "decoding attachment archive", err)
	}
	return chain, nil
}

func appendAttachmentRevisionBkt(bkt *bolt.Bucket, att *doc.Attachment) error {
	chain, err := loadAttachmentArchiveBkt(bkt, att.Filename)
	if err != nil {
		return err
	}
	chain = doc.AppendAttachmentRevision(chain, att)
	raw, err := json.Marshal(chain)
	if err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "encoding attachment archive", err)
	}
	if err := bkt.Put([]byte(prefixAttachChain+att.Filename), raw); err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "writing attachment archive", err)
	}
	return nil
}

func (b *BoltStore) LoadAttachmentArchive(ctx context.Context, d *doc.Document, filename string) ([]doc.AttachmentRevision, error) {
	var chain []doc.AttachmentRevision
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, d.Key, false)
		if err != nil {
			return err
		}
		if bkt == nil {
			return nil
		}
		chain, err = loadAttachmentArchiveBkt(bkt, filename)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func (b *BoltStore) SaveAttachmentArchive(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, d.Key, true)
		if err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "creating document bucket", err)
		}
		return appendAttachmentRevisionBkt(bkt, att)
	})
}

func (b *BoltStore) DeleteAttachmentArchive(ctx context.Context, d *doc.Document, filename string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := b.docBucket(tx, d.Key, false)
		if err != nil {
			return wrap(CodeDeletingAttachment, filename, "opening document bucket", err)
		}
		if bkt == nil {
			return nil
		}
		if err := bkt.Delete([]byte(prefixAttachChain + filename)); err != nil {
			return wrap(CodeDeletingAttachment, filename, "deleting attachment archive", err)
		}
		return nil
	})
}

// --- search ---

func (b *BoltStore) Search(ctx context.Context, query string, limit, offset int, params ...any) ([][]any, error) {
	return nil, unsupported("bolt store", "search queries")
}

func (b *BoltStore) SearchDocumentNames(ctx context.Context, wiki, where string, limit, offset int, params ...any) ([]string, error) {
	if where != "" {
		return nil, unsupported("bolt store", "filtered name searches")
	}
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		return b.walkDocBuckets(tx, wiki, func(bkt *bolt.Bucket) error {
			raw := bkt.Get([]byte(keyMeta))
			if raw == nil {
				return nil
			}
			var meta boltMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				return err
			}
			full := meta.Key.FullName()
			if !seen[full] {
				seen[full] = true
				names = append(names, full)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrap(CodeSearch, wiki, "walking document buckets", err)
	}
	sort.Strings(names)
	if offset > 0 {
		if offset >= len(names) {
			return []string{}, nil
		}
		names = names[offset:]
	}
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}
	return names, nil
}

func deletePrefix(bkt *bolt.Bucket, prefix []byte) error {
	var stale [][]byte
	cursor := bkt.Cursor()
	for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := bkt.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// boltTxStore serves operations inside an already open update transaction.
type boltTxStore struct {
	s  *BoltStore
	tx *bolt.Tx
}

var _ Store = (*boltTxStore)(nil)

func (b *boltTxStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return f(b)
}

func (b *boltTxStore) Migrate() error { return nil }
func (b *boltTxStore) Close() error   { return nil }

func (b *boltTxStore) Exists(ctx context.Context, key doc.Key) (bool, error) {
	bkt, err := b.s.docBucket(b.tx, key, false)
	if err != nil {
		return false, wrap(CodeLoadingDoc, key.String(), "checking document bucket", err)
	}
	return bkt != nil && bkt.Get([]byte(keyMeta)) != nil, nil
}

func (b *boltTxStore) LoadDocument(ctx context.Context, key doc.Key) (*doc.Document, error) {
	return b.s.loadDocumentTx(b.tx, key)
}

func (b *boltTxStore) LoadDocumentRevision(ctx context.Context, key doc.Key, version doc.Version) (*doc.Document, error) {
	current, err := b.s.loadDocumentTx(b.tx, key)
	if err != nil {
		return nil, err
	}
	if current.IsNew {
		return nil, wrap(CodeLoadingDoc, key.String(), "document has no revisions", nil)
	}
	ar, err := b.s.loadArchiveTx(b.tx, key)
	if err != nil {
		return nil, err
	}
	return materializeRevision(current, ar, version)
}

func (b *boltTxStore) SaveDocument(ctx context.Context, d *doc.Document) error {
	return b.s.saveDocumentTx(b.tx, d)
}

func (b *boltTxStore) DeleteDocument(ctx context.Context, d *doc.Document) error {
	return b.s.deleteDocumentTx(b.tx, d)
}

func (b *boltTxStore) ListClasses(ctx context.Context, wiki string) ([]string, error) {
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := b.s.walkDocBuckets(b.tx, wiki, func(bkt *bolt.Bucket) error {
		raw := bkt.Get([]byte(keyClass))
		if raw == nil {
			return nil
		}
		var cls doc.Class
		if err := json.Unmarshal(raw, &cls); err != nil {
			return err
		}
		if !seen[cls.Name] {
			seen[cls.Name] = true
			names = append(names, cls.Name)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(CodeLoadingClass, wiki, "scanning classes", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *boltTxStore) LoadArchive(ctx context.Context, key doc.Key) (*archive.Archive, error) {
	return b.s.loadArchiveTx(b.tx, key)
}

func (b *boltTxStore) ResetArchive(ctx context.Context, d *doc.Document) error {
	ar := archive.New(d.Key)
	ar.Reset(d)
	return b.s.storeArchiveTx(b.tx, ar)
}

func (b *boltTxStore) LoadLock(ctx context.Context, docID int64) (*doc.Lock, error) {
	bkt := b.tx.Bucket(bucketLocks)
	if bkt == nil {
		return nil, nil
	}
	raw := bkt.Get([]byte(strconv.FormatInt(docID, 10)))
	if raw == nil {
		return nil, nil
	}
	var entry boltLock
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, wrap(CodeLoadingLock, "", "decoding lock entry", err)
	}
	return entry.Lock, nil
}

func (b *boltTxStore) SaveLock(ctx context.Context, wiki string, lock *doc.Lock) error {
	if lock.Token == "" {
		lock.Token = uuid.New().String()
	}
	if lock.Date.IsZero() {
		lock.Date = time.Now()
	}
	bkt, err := b.tx.CreateBucketIfNotExists(bucketLocks)
	if err != nil {
		return wrap(CodeSavingLock, lock.Owner, "creating lock bucket", err)
	}
	raw, err := json.Marshal(boltLock{Wiki: wiki, Lock: lock})
	if err != nil {
		return wrap(CodeSavingLock, lock.Owner, "encoding lock entry", err)
	}
	if err := bkt.Put([]byte(strconv.FormatInt(lock.DocID, 10)), raw); err != nil {
		return wrap(CodeSavingLock, lock.Owner, "writing lock entry", err)
	}
	return nil
}

func (b *boltTxStore) DeleteLock(ctx context.Context, lock *doc.Lock) error {
	bkt := b.tx.Bucket(bucketLocks)
	if bkt == nil {
		return nil
	}
	if err := bkt.Delete([]byte(strconv.FormatInt(lock.DocID, 10))); err != nil {
		return wrap(CodeDeletingLock, lock.Owner, "deleting lock entry", err)
	}
	return nil
}

func (b *boltTxStore) ExpireLocks(ctx context.Context, wiki string, before time.Time) (int, error) {
	bkt := b.tx.Bucket(bucketLocks)
	if bkt == nil {
		return 0, nil
	}
	expired := 0
	var stale [][]byte
	cursor := bkt.Cursor()
	for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
		var entry boltLock
		if err := json.Unmarshal(v, &entry); err != nil {
			return 0, wrap(CodeDeletingLock, wiki, "decoding lock entry", err)
		}
		if entry.Wiki == wiki && entry.Lock != nil && entry.Lock.Date.Before(before) {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		if err := bkt.Delete(k); err != nil {
			return 0, wrap(CodeDeletingLock, wiki, "expiring locks", err)
		}
		expired++
	}
	return expired, nil
}

func (b *boltTxStore) LoadLinks(ctx context.Context, docID int64) ([]doc.Link, error) {
	bkt := b.tx.Bucket(bucketLinks)
	if bkt == nil {
		return nil, nil
	}
	raw := bkt.Get([]byte(strconv.FormatInt(docID, 10)))
	if raw == nil {
		return nil, nil
	}
	var entry boltEdges
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, wrap(CodeLoadingLinks, "", "decoding link entry", err)
	}
	return entry.Edges, nil
}

func (b *boltTxStore) SaveLinks(ctx context.Context, d *doc.Document) error {
	return b.s.saveLinksTx(b.tx, d)
}

func (b *boltTxStore) DeleteLinks(ctx context.Context, docID int64) error {
	bkt := b.tx.Bucket(bucketLinks)
	if bkt == nil {
		return nil
	}
	if err := bkt.Delete([]byte(strconv.FormatInt(docID, 10))); err != nil {
		return wrap(CodeDeletingLinks, "", "deleting link entry", err)
	}
	return nil
}

func (b *boltTxStore) LoadBacklinks(ctx context.Context, wiki, target string) ([]string, error) {
	bkt := b.tx.Bucket(bucketLinks)
	if bkt == nil {
		return []string{}, nil
	}
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := bkt.ForEach(func(k, v []byte) error {
		var entry boltEdges
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		if entry.Wiki != wiki {
			return nil
		}
		for _, e := range entry.Edges {
			if e.Target == target && !seen[e.SourceFullName] {
				seen[e.SourceFullName] = true
				names = append(names, e.SourceFullName)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrap(CodeLoadingLinks, target, "scanning backlinks", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *boltTxStore) LoadAttachmentContent(ctx context.Context, d *doc.Document, filename string) ([]byte, error) {
	bkt, err := b.s.docBucket(b.tx, d.Key, false)
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "opening document bucket", err)
	}
	if bkt == nil {
		return nil, wrap(CodeLoadingAttachment, filename, "attachment not found", nil)
	}
	raw := bkt.Get([]byte(prefixAttach + filename))
	if raw == nil {
		return nil, wrap(CodeLoadingAttachment, filename, "attachment not found", nil)
	}
	return append([]byte(nil), raw...), nil
}

func (b *boltTxStore) SaveAttachmentContent(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	bkt, err := b.s.docBucket(b.tx, d.Key, true)
	if err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "creating document bucket", err)
	}
	if err := bkt.Put([]byte(prefixAttach+att.Filename), att.Content); err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "writing attachment payload", err)
	}
	if err := appendAttachmentRevisionBkt(bkt, att); err != nil {
		return err
	}
	return b.s.writeAttachmentMeta(bkt, d)
}

func (b *boltTxStore) DeleteAttachment(ctx context.Context, d *doc.Document, filename string) error {
	bkt, err := b.s.docBucket(b.tx, d.Key, false)
	if err != nil {
		return wrap(CodeDeletingAttachment, filename, "opening document bucket", err)
	}
	if bkt == nil {
		return nil
	}
	for _, k := range []string{prefixAttach + filename, prefixAttachChain + filename} {
		if err := bkt.Delete([]byte(k)); err != nil {
			return wrap(CodeDeletingAttachment, filename, "deleting attachment payload", err)
		}
	}
	d.RemoveAttachment(filename)
	return b.s.writeAttachmentMeta(bkt, d)
}

func (b *boltTxStore) LoadAttachmentArchive(ctx context.Context, d *doc.Document, filename string) ([]doc.AttachmentRevision, error) {
	bkt, err := b.s.docBucket(b.tx, d.Key, false)
	if err != nil {
		return nil, err
	}
	if bkt == nil {
		return nil, nil
	}
	return loadAttachmentArchiveBkt(bkt, filename)
}

func (b *boltTxStore) SaveAttachmentArchive(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	bkt, err := b.s.docBucket(b.tx, d.Key, true)
	if err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "creating document bucket", err)
	}
	return appendAttachmentRevisionBkt(bkt, att)
}

func (b *boltTxStore) DeleteAttachmentArchive(ctx context.Context, d *doc.Document, filename string) error {
	bkt, err := b.s.docBucket(b.tx, d.Key, false)
	if err != nil {
		return wrap(CodeDeletingAttachment, filename, "opening document bucket", err)
	}
	if bkt == nil {
		return nil
	}
	if err := bkt.Delete([]byte(prefixAttachChain + filename)); err != nil {
		return wrap(CodeDeletingAttachment, filename, "deleting attachment archive", err)
	}
	return nil
}

func (b *boltTxStore) Search(ctx context.Context, query string, limit, offset int, params ...any) ([][]any, error) {
	return nil, unsupported("bolt store", "search queries")
}

func (b *boltTxStore) SearchDocumentNames(ctx context.Context, wiki, where string, limit, offset int, params ...any) ([]string, error) {
	if where != "" {
		return nil, unsupported("bolt store", "filtered name searches")
	}
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := b.s.walkDocBuckets(b.tx, wiki, func(bkt *bolt.Bucket) error {
		raw := bkt.Get([]byte(keyMeta))
		if raw == nil {
			return nil
		}
		var meta boltMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return err
		}
		full := meta.Key.FullName()
		if !seen[full] {
			seen[full] = true
			names = append(names, full)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(CodeSearch, wiki, "walking document buckets", err)
	}
	sort.Strings(names)
	if offset > 0 {
		if offset >= len(names) {
			return []string{}, nil
		}
		names = names[offset:]
	}
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}
	return names, nil
}
