package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emrgen/wikistore/internal/archive"
	"github.com/emrgen/wikistore/internal/doc"
	"github.com/emrgen/wikistore/internal/link"
)

// header values are single-line, so quotes and newlines travel as tokens
const (
	quoteToken   = "%_Q_%"
	newlineToken = "%_N_%"
)

// NewFileStore creates the flat-file backend. Documents live under root as
// one text file each, attachment payloads under attachRoot.
func NewFileStore(root, attachRoot string, backlinks bool) *FileStore {
	if attachRoot == "" {
		attachRoot = filepath.Join(root, ".attachments")
	}
	return &FileStore{root: root, attachRoot: attachRoot, backlinks: backlinks}
}

var _ Store = (*FileStore)(nil)

type FileStore struct {
	root       string
	attachRoot string
	backlinks  bool
	mu         sync.Mutex
}

// Transaction runs f against the store itself. The file backend has no
// rollback; failures leave whatever files were already written.
func (s *FileStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return f(s)
}

func (s *FileStore) Migrate() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return wrap(CodeMigrate, s.root, "creating store directory", err)
	}
	if err := os.MkdirAll(s.attachRoot, 0o755); err != nil {
		return wrap(CodeMigrate, s.attachRoot, "creating attachment directory", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) docPath(key doc.Key) string {
	name := key.Name
	if key.Language != "" {
		name += "." + key.Language
	}
	return filepath.Join(s.root, key.Wiki, key.Space, name+".txt")
}

func (s *FileStore) archivePath(key doc.Key) string {
	return s.docPath(key) + ".v"
}

func (s *FileStore) attachDir(key doc.Key) string {
	name := key.Name
	if key.Language != "" {
		name += "." + key.Language
	}
	return filepath.Join(s.attachRoot, key.Wiki, key.Space, name)
}

func (s *FileStore) Exists(ctx context.Context, key doc.Key) (bool, error) {
	_, err := os.Stat(s.docPath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, wrap(CodeLoadingDoc, key.String(), "checking document file", err)
	}
	return true, nil
}

func (s *FileStore) LoadDocument(ctx context.Context, key doc.Key) (*doc.Document, error) {
	data, err := os.ReadFile(s.docPath(key))
	if os.IsNotExist(err) {
		return doc.New(key), nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "reading document file", err)
	}
	d, err := parseDocFile(key, string(data))
	if err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "parsing document file", err)
	}
	return d, nil
}

func (s *FileStore) LoadDocumentRevision(ctx context.Context, key doc.Key, version doc.Version) (*doc.Document, error) {
	current, err := s.LoadDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	if current.IsNew {
		return nil, wrap(CodeLoadingDoc, key.String(), "document has no revisions", nil)
	}
	ar, err := s.LoadArchive(ctx, key)
	if err != nil {
		return nil, err
	}
	return materializeRevision(current, ar, version)
}

func (s *FileStore) SaveDocument(ctx context.Context, d *doc.Document) error {
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

	data, err := renderDocFile(d)
	if err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "encoding document file", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.docPath(d.Key), data); err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "writing document file", err)
	}
	for _, att := range d.Attachments {
		if att.Content == nil {
			continue
		}
		if err := s.writeAttachment(d.Key, att.Filename, att.Content); err != nil {
			return err
		}
		if err := s.appendAttachmentRevisionLocked(d.Key, att); err != nil {
			return err
		}
	}
	if dirty {
		ar, err := s.loadArchiveLocked(d.Key)
		if err != nil {
			return err
		}
		if err := ar.Update(d); err != nil {
			return wrap(CodeSavingArchive, d.Key.String(), "appending revision", err)
		}
		if err := s.storeArchiveLocked(ar); err != nil {
			return err
		}
		if s.backlinks {
			if err := s.saveLinksLocked(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FileStore) DeleteDocument(ctx context.Context, d *doc.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range []string{s.docPath(d.Key), s.archivePath(d.Key)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return wrap(CodeDeletingDoc, d.Key.String(), "removing document file", err)
		}
	}
	if err := os.RemoveAll(s.attachDir(d.Key)); err != nil {
		return wrap(CodeDeletingAttachment, d.Key.String(), "removing attachment directory", err)
	}
	if err := s.mutateLinks(d.Key.Wiki, func(links map[string][]doc.Link) {
		delete(links, strconv.FormatInt(d.Key.ID(), 10))
	}); err != nil {
		return err
	}
	if err := s.mutateLocks(d.Key.Wiki, func(locks map[string]*doc.Lock) {
		delete(locks, strconv.FormatInt(d.Key.ID(), 10))
	}); err != nil {
		return err
	}
	d.IsNew = true
	return nil
}

func (s *FileStore) ListClasses(ctx context.Context, wiki string) ([]string, error) {
	names := make([]string, 0)
	seen := make(map[string]bool)
	err := s.walkDocs(wiki, func(key doc.Key, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		header, _, err := splitDocFile(string(data))
		if err != nil {
			return err
		}
		raw, ok := header["class"]
		if !ok || raw == "" {
			return nil
		}
		var cls doc.Class
		if err := json.Unmarshal([]byte(raw), &cls); err != nil {
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

// --- archive ---

func (s *FileStore) LoadArchive(ctx context.Context, key doc.Key) (*archive.Archive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadArchiveLocked(key)
}

func (s *FileStore) loadArchiveLocked(key doc.Key) (*archive.Archive, error) {
	data, err := os.ReadFile(s.archivePath(key))
	if os.IsNotExist(err) {
		return archive.New(key), nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "reading archive file", err)
	}
	ar, err := archive.Unmarshal(data)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "decoding archive file", err)
	}
	return ar, nil
}

func (s *FileStore) ResetArchive(ctx context.Context, d *doc.Document) error {
	ar := archive.New(d.Key)
	ar.Reset(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeArchiveLocked(ar)
}

func (s *FileStore) storeArchiveLocked(ar *archive.Archive) error {
	blob, err := ar.Marshal()
	if err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "encoding archive", err)
	}
	if err := writeFileAtomic(s.archivePath(ar.Key), blob); err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "writing archive file", err)
	}
	return nil
}

// --- locks ---

func (s *FileStore) locksPath(wiki string) string {
	return filepath.Join(s.root, wiki, "locks.json")
}

func (s *FileStore) LoadLock(ctx context.Context, docID int64) (*doc.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wikis, err := s.listWikis()
	if err != nil {
		return nil, wrap(CodeLoadingLock, "", "listing wikis", err)
	}
	id := strconv.FormatInt(docID, 10)
	for _, wiki := range wikis {
		locks, err := s.readLocks(wiki)
		if err != nil {
			return nil, err
		}
		if lock, ok := locks[id]; ok {
			return lock, nil
		}
	}
	return nil, nil
}

func (s *FileStore) SaveLock(ctx context.Context, wiki string, lock *doc.Lock) error {
	if lock.Token == "" {
		lock.Token = uuid.New().String()
	}
	if lock.Date.IsZero() {
		lock.Date = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocks(wiki, func(locks map[string]*doc.Lock) {
		locks[strconv.FormatInt(lock.DocID, 10)] = lock
	})
}

func (s *FileStore) DeleteLock(ctx context.Context, lock *doc.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wikis, err := s.listWikis()
	if err != nil {
		return wrap(CodeDeletingLock, "", "listing wikis", err)
	}
	id := strconv.FormatInt(lock.DocID, 10)
	for _, wiki := range wikis {
		if err := s.mutateLocks(wiki, func(locks map[string]*doc.Lock) {
			delete(locks, id)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) ExpireLocks(ctx context.Context, wiki string, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	err := s.mutateLocks(wiki, func(locks map[string]*doc.Lock) {
		for id, lock := range locks {
			if lock.Date.Before(before) {
				delete(locks, id)
				expired++
			}
		}
	})
	return expired, err
}

func (s *FileStore) readLocks(wiki string) (map[string]*doc.Lock, error) {
	locks := make(map[string]*doc.Lock)
	data, err := os.ReadFile(s.locksPath(wiki))
	if os.IsNotExist(err) {
		return locks, nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingLock, wiki, "reading lock sidecar", err)
	}
	if err := json.Unmarshal(data, &locks); err != nil {
		return nil, wrap(CodeLoadingLock, wiki, "decoding lock sidecar", err)
	}
	return locks, nil
}

func (s *FileStore) mutateLocks(wiki string, f func(locks map[string]*doc.Lock)) error {
	locks, err := s.readLocks(wiki)
	if err != nil {
		return err
	}
	f(locks)
	data, err := json.Marshal(locks)
	if err != nil {
		return wrap(CodeSavingLock, wiki, "encoding lock sidecar", err)
	}
	if err := writeFileAtomic(s.locksPath(wiki), data); err != nil {
		return wrap(CodeSavingLock, wiki, "writing lock sidecar", err)
	}
	return nil
}

// --- links ---

func (s *FileStore) linksPath(wiki string) string {
	return filepath.Join(s.root, wiki, "links.json")
}

func (s *FileStore) LoadLinks(ctx context.Context, docID int64) ([]doc.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wikis, err := s.listWikis()
	if err != nil {
		return nil, wrap(CodeLoadingLinks, "", "listing wikis", err)
	}
	id := strconv.FormatInt(docID, 10)
	for _, wiki := range wikis {
		links, err := s.readLinks(wiki)
		if err != nil {
			return nil, err
		}
		if edges, ok := links[id]; ok {
			return edges, nil
		}
	}
	return nil, nil
}

func (s *FileStore) SaveLinks(ctx context.Context, d *doc.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLinksLocked(d)
}

func (s *FileStore) saveLinksLocked(d *doc.Document) error {
	edges := link.Edges(d)
	return s.mutateLinks(d.Key.Wiki, func(links map[string][]doc.Link) {
		id := strconv.FormatInt(d.Key.ID(), 10)
		if len(edges) == 0 {
			delete(links, id)
			return
		}
		links[id] = edges
	})
}

func (s *FileStore) DeleteLinks(ctx context.Context, docID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wikis, err := s.listWikis()
	if err != nil {
		return wrap(CodeDeletingLinks, "", "listing wikis", err)
	}
	id := strconv.FormatInt(docID, 10)
	for _, wiki := range wikis {
		if err := s.mutateLinks(wiki, func(links map[string][]doc.Link) {
			delete(links, id)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) LoadBacklinks(ctx context.Context, wiki, target string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	links, err := s.readLinks(wiki)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, edges := range links {
		for _, e := range edges {
			if e.Target == target && !seen[e.SourceFullName] {
				seen[e.SourceFullName] = true
				names = append(names, e.SourceFullName)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) readLinks(wiki string) (map[string][]doc.Link, error) {
	links := make(map[string][]doc.Link)
	data, err := os.ReadFile(s.linksPath(wiki))
	if os.IsNotExist(err) {
		return links, nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingLinks, wiki, "reading link sidecar", err)
	}
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, wrap(CodeLoadingLinks, wiki, "decoding link sidecar", err)
	}
	return links, nil
}

func (s *FileStore) mutateLinks(wiki string, f func(links map[string][]doc.Link)) error {
	links, err := s.readLinks(wiki)
	if err != nil {
		return err
	}
	f(links)
	data, err := json.Marshal(links)
	if err != nil {
		return wrap(CodeSavingLinks, wiki, "encoding link sidecar", err)
	}
	if err := writeFileAtomic(s.linksPath(wiki), data); err != nil {
		return wrap(CodeSavingLinks, wiki, "writing link sidecar", err)
	}
	return nil
}

// --- attachments ---

func (s *FileStore) LoadAttachmentContent(ctx context.Context, d *doc.Document, filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.attachDir(d.Key), filename))
	if os.IsNotExist(err) {
		return nil, wrap(CodeLoadingAttachment, filename, "attachment not found", nil)
	}
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "reading attachment file", err)
	}
	return data, nil
}

func (s *FileStore) SaveAttachmentContent(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAttachment(d.Key, att.Filename, att.Content); err != nil {
		return err
	}
	return s.appendAttachmentRevisionLocked(d.Key, att)
}

func (s *FileStore) writeAttachment(key doc.Key, filename string, content []byte) error {
	if err := writeFileAtomic(filepath.Join(s.attachDir(key), filename), content); err != nil {
		return wrap(CodeSavingAttachment, filename, "writing attachment file", err)
	}
	return nil
}

func (s *FileStore) DeleteAttachment(ctx context.Context, d *doc.Document, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, path := range []string{
		filepath.Join(s.attachDir(d.Key), filename),
		s.attachArchivePath(d.Key, filename),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return wrap(CodeDeletingAttachment, filename, "removing attachment file", err)
		}
	}
	d.RemoveAttachment(filename)
	return nil
}

// attachment revision chains sit next to the payload, mirroring the
// document's .txt/.txt.v pairing
func (s *FileStore) attachArchivePath(key doc.Key, filename string) string {
	return filepath.Join(s.attachDir(key), filename+".v")
}

func (s *FileStore) LoadAttachmentArchive(ctx context.Context, d *doc.Document, filename string) ([]doc.AttachmentRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAttachmentArchiveLocked(d.Key, filename)
}

func (s *FileStore) loadAttachmentArchiveLocked(key doc.Key, filename string) ([]doc.AttachmentRevision, error) {
	data, err := os.ReadFile(s.attachArchivePath(key, filename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "reading attachment archive file", err)
	}
	var chain []doc.AttachmentRevision
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "decoding attachment archive file", err)
	}
	return chain, nil
}

func (s *FileStore) SaveAttachmentArchive(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAttachmentRevisionLocked(d.Key, att)
}

func (s *FileStore) appendAttachmentRevisionLocked(key doc.Key, att *doc.Attachment) error {
	chain, err := s.loadAttachmentArchiveLocked(key, att.Filename)
	if err != nil {
		return err
	}
	chain = doc.AppendAttachmentRevision(chain, att)
	data, err := json.Marshal(chain)
	if err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "encoding attachment archive", err)
	}
	if err := writeFileAtomic(s.attachArchivePath(key, att.Filename), data); err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "writing attachment archive file", err)
	}
	return nil
}

func (s *FileStore) DeleteAttachmentArchive(ctx context.Context, d *doc.Document, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.attachArchivePath(d.Key, filename)); err != nil && !os.IsNotExist(err) {
		return wrap(CodeDeletingAttachment, filename, "removing attachment archive file", err)
	}
	return nil
}

// --- search ---

func (s *FileStore) Search(ctx context.Context, query string, limit, offset int, params ...any) ([][]any, error) {
	return nil, unsupported("file store", "search queries")
}

func (s *FileStore) SearchDocumentNames(ctx context.Context, wiki, where string, limit, offset int, params ...any) ([]string, error) {
	if where != "" {
		return nil, unsupported("file store", "filtered name searches")
	}
	seen := make(map[string]bool)
	names := make([]string, 0)
	err := s.walkDocs(wiki, func(key doc.Key, path string) error {
		full := key.FullName()
		if !seen[full] {
			seen[full] = true
			names = append(names, full)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(CodeSearch, wiki, "walking document tree", err)
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

// walkDocs visits every document file of a wiki. The filename encodes name
// and language; the parent directory is the space.
func (s *FileStore) walkDocs(wiki string, f func(key doc.Key, path string) error) error {
	wikiDir := filepath.Join(s.root, wiki)
	if _, err := os.Stat(wikiDir); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(wikiDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			return nil
		}
		base := strings.TrimSuffix(entry.Name(), ".txt")
		key := doc.Key{Wiki: wiki, Space: filepath.Base(filepath.Dir(path)), Name: base}
		if i := strings.LastIndex(base, "."); i > 0 && isLanguageCode(base[i+1:]) {
			key.Name = base[:i]
			key.Language = base[i+1:]
		}
		return f(key, path)
	})
}

// isLanguageCode reports whether s has the shape of a translation suffix,
// a lowercase ISO 639 code with an optional _REGION part ("fr", "pt_BR").
// Page names may contain dots, so only suffixes of this shape split off
// as a language when walking the tree.
func isLanguageCode(s string) bool {
	lang := s
	if i := strings.Index(s, "_"); i > 0 {
		lang = s[:i]
		region := s[i+1:]
		if len(region) != 2 {
			return false
		}
		for _, r := range region {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
	}
	if len(lang) < 2 || len(lang) > 3 {
		return false
	}
	for _, r := range lang {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func (s *FileStore) listWikis() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	wikis := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			wikis = append(wikis, e.Name())
		}
	}
	return wikis, nil
}

// --- file format ---

func encodeHeaderValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", newlineToken)
	s = strings.ReplaceAll(s, "\n", newlineToken)
	return strings.ReplaceAll(s, `"`, quoteToken)
}

func decodeHeaderValue(s string) string {
	s = strings.ReplaceAll(s, quoteToken, `"`)
	return strings.ReplaceAll(s, newlineToken, "\n")
}

func renderDocFile(d *doc.Document) ([]byte, error) {
	var b strings.Builder
	put := func(key, value string) {
		b.WriteString(key)
		b.WriteString(`="`)
		b.WriteString(encodeHeaderValue(value))
		b.WriteString("\"\n")
	}
	put("wiki", d.Key.Wiki)
	put("space", d.Key.Space)
	put("name", d.Key.Name)
	put("language", d.Key.Language)
	put("defaultLanguage", d.DefaultLanguage)
	put("title", d.Title)
	put("parent", d.Parent)
	put("format", d.Format)
	put("author", d.Author)
	put("contentAuthor", d.ContentAuthor)
	put("creator", d.Creator)
	put("comment", d.Comment)
	put("minorEdit", strconv.FormatBool(d.MinorEdit))
	put("version", d.Version.String())
	put("creationDate", d.CreationDate.Format(time.RFC3339Nano))
	put("date", d.Date.Format(time.RFC3339Nano))
	put("contentDate", d.ContentDate.Format(time.RFC3339Nano))
	if d.Class != nil {
		cls, err := json.Marshal(d.Class)
		if err != nil {
			return nil, err
		}
		put("class", string(cls))
	}
	if len(d.Objects) > 0 {
		objs, err := json.Marshal(d.Objects)
		if err != nil {
			return nil, err
		}
		put("objects", string(objs))
	}
	if len(d.Attachments) > 0 {
		atts, err := json.Marshal(d.Attachments)
		if err != nil {
			return nil, err
		}
		put("attachments", string(atts))
	}
	b.WriteString("\n")
	b.WriteString(d.Content)
	return []byte(b.String()), nil
}

func splitDocFile(data string) (map[string]string, string, error) {
	header := make(map[string]string)
	rest := data
	for {
		line, tail, found := strings.Cut(rest, "\n")
		if !found {
			return nil, "", fmt.Errorf("missing header terminator")
		}
		rest = tail
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			return header, rest, nil
		}
		key, value, ok := strings.Cut(line, `="`)
		if !ok || !strings.HasSuffix(value, `"`) {
			return nil, "", fmt.Errorf("malformed header line %q", line)
		}
		header[key] = decodeHeaderValue(strings.TrimSuffix(value, `"`))
	}
}

func parseDocFile(key doc.Key, data string) (*doc.Document, error) {
	header, content, err := splitDocFile(data)
	if err != nil {
		return nil, err
	}
	version, err := doc.ParseVersion(header["version"])
	if err != nil {
		return nil, err
	}
	d := doc.New(key)
	d.IsNew = false
	d.DefaultLanguage = header["defaultLanguage"]
	d.Title = header["title"]
	d.Parent = header["parent"]
	d.Format = header["format"]
	d.Author = header["author"]
	d.ContentAuthor = header["contentAuthor"]
	d.Creator = header["creator"]
	d.Comment = header["comment"]
	d.MinorEdit = header["minorEdit"] == "true"
	d.Version = version
	d.Content = content
	for field, target := range map[string]*time.Time{
		"creationDate": &d.CreationDate,
		"date":         &d.Date,
		"contentDate":  &d.ContentDate,
	} {
		if raw := header[field]; raw != "" {
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return nil, err
			}
			*target = t
		}
	}
	if raw := header["class"]; raw != "" {
		var cls doc.Class
		if err := json.Unmarshal([]byte(raw), &cls); err != nil {
			return nil, err
		}
		d.Class = &cls
	}
	if raw := header["objects"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &d.Objects); err != nil {
			return nil, err
		}
	}
	if raw := header["attachments"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &d.Attachments); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
