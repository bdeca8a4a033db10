// Package doc holds the in-memory wiki document model: documents, their
// dynamically-typed object graph, classes, attachments, locks and link edges.
// It performs no I/O; persistence lives in the store package.
package doc

import (
	"sort"
	"time"
)

// Document is one wiki page: free-text content, metadata, attachments, an
// optional class definition and instances of any number of classes.
type Document struct {
	Key             Key
	Title           string
	Content         string
	Format          string
	Author          string
	ContentAuthor   string
	Creator         string
	Parent          string
	Comment         string
	DefaultLanguage string
	CreationDate    time.Time
	Date            time.Time
	ContentDate     time.Time
	Version         Version

	// IsNew marks a document that does not exist in storage; loading an
	// absent page returns such a marker instead of an error.
	IsNew bool
	// FromCache marks a copy served by the caching decorator.
	FromCache bool
	// MinorEdit keeps the next save on the same major revision.
	MinorEdit bool

	ContentDirty  bool
	MetaDataDirty bool

	Attachments []*Attachment
	Class       *Class
	Objects     map[string][]*Object
}

// New returns an unsaved marker document for the given key.
func New(key Key) *Document {
	return &Document{
		Key:       key,
		Format:    "1.0",
		IsNew:     true,
		MinorEdit: true,
		Objects:   make(map[string][]*Object),
	}
}

// Dirty reports whether the next save must advance the version and append an
// archive node.
func (d *Document) Dirty() bool {
	return d.ContentDirty || d.MetaDataDirty
}

// SetContent updates the content and marks it dirty when it actually changed.
func (d *Document) SetContent(content string) {
	if d.Content == content {
		return
	}
	d.Content = content
	d.ContentDirty = true
}

// SetParent updates the parent reference and marks metadata dirty.
func (d *Document) SetParent(parent string) {
	if d.Parent == parent {
		return
	}
	d.Parent = parent
	d.MetaDataDirty = true
}

// SetTitle updates the title and marks metadata dirty.
func (d *Document) SetTitle(title string) {
	if d.Title == title {
		return
	}
	d.Title = title
	d.MetaDataDirty = true
}

// Touch performs the version and date bookkeeping for one dirty save: the
// version advances exactly once (minor, or major for a non-minor edit) and the
// dirty flags reset. A clean document is left untouched.
func (d *Document) Touch(author string, now time.Time) {
	if !d.Dirty() && !d.IsNew {
		return
	}
	if d.IsNew {
		d.CreationDate = now
		if d.Creator == "" {
			d.Creator = author
		}
	}
	if d.MinorEdit {
		d.Version = d.Version.Next()
	} else {
		d.Version = d.Version.NextMajor()
	}
	d.Author = author
	d.Date = now
	if d.ContentDirty {
		d.ContentAuthor = author
		d.ContentDate = now
	}
	d.IsNew = false
	d.ContentDirty = false
	d.MetaDataDirty = false
}

// Object returns the first instance of the named class, or nil.
func (d *Document) Object(className string) *Object {
	objs := d.Objects[className]
	if len(objs) == 0 {
		return nil
	}
	return objs[0]
}

// AddObject appends an instance, assigning the next free number within its
// class.
func (d *Document) AddObject(obj *Object) {
	if d.Objects == nil {
		d.Objects = make(map[string][]*Object)
	}
	next := 0
	for _, o := range d.Objects[obj.ClassName] {
		if o.Number >= next {
			next = o.Number + 1
		}
	}
	obj.Number = next
	d.Objects[obj.ClassName] = append(d.Objects[obj.ClassName], obj)
	d.MetaDataDirty = true
}

// ObjectClassNames returns the class names with at least one instance, sorted.
func (d *Document) ObjectClassNames() []string {
	names := make([]string, 0, len(d.Objects))
	for name, objs := range d.Objects {
		if len(objs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Attachment returns the named attachment, or nil.
func (d *Document) Attachment(filename string) *Attachment {
	for _, a := range d.Attachments {
		if a.Filename == filename {
			return a
		}
	}
	return nil
}

// AddAttachment registers an attachment, replacing a previous one with the
// same filename and bumping its version.
func (d *Document) AddAttachment(a *Attachment) {
	if prev := d.Attachment(a.Filename); prev != nil {
		a.Version = prev.Version.Next()
		for i, existing := range d.Attachments {
			if existing.Filename == a.Filename {
				d.Attachments[i] = a
				d.MetaDataDirty = true
				return
			}
		}
	}
	a.Version = a.Version.Next()
	d.Attachments = append(d.Attachments, a)
	d.MetaDataDirty = true
}

// RemoveAttachment drops the named attachment from the document.
func (d *Document) RemoveAttachment(filename string) {
	for i, a := range d.Attachments {
		if a.Filename == filename {
			d.Attachments = append(d.Attachments[:i], d.Attachments[i+1:]...)
			d.MetaDataDirty = true
			return
		}
	}
}

// Copy returns a deep clone. The caching decorator hands out copies so that
// callers can never mutate a cached entry.
func (d *Document) Copy() *Document {
	cp := *d
	cp.Attachments = make([]*Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		cp.Attachments = append(cp.Attachments, a.Copy())
	}
	cp.Class = d.Class.Copy()
	cp.Objects = make(map[string][]*Object, len(d.Objects))
	for name, objs := range d.Objects {
		copies := make([]*Object, 0, len(objs))
		for _, o := range objs {
			copies = append(copies, o.Copy())
		}
		cp.Objects[name] = copies
	}
	return &cp
}
