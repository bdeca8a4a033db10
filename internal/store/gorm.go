package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emrgen/wikistore/internal/archive"
	"github.com/emrgen/wikistore/internal/compress"
	"github.com/emrgen/wikistore/internal/doc"
	"github.com/emrgen/wikistore/internal/link"
	"github.com/emrgen/wikistore/internal/model"
)

// NewGormStore creates the relational backend on top of an open GORM
// connection. The codec compresses archive and attachment blobs; mappings is
// the immutable custom-mapping registry built at startup.
func NewGormStore(db *gorm.DB, codecName string, mappings *MappingRegistry, backlinks bool) (*GormStore, error) {
	codec, err := compress.ByName(codecName)
	if err != nil {
		return nil, err
	}
	if mappings == nil {
		mappings = NewMappingRegistry()
	}
	return &GormStore{
		db:        db,
		codec:     codec,
		codecName: codecName,
		mappings:  mappings,
		backlinks: backlinks,
	}, nil
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db        *gorm.DB
	codec     compress.Compress
	codecName string
	mappings  *MappingRegistry
	backlinks bool
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{
			db:        tx,
			codec:     g.codec,
			codecName: g.codecName,
			mappings:  g.mappings,
			backlinks: g.backlinks,
		})
	})
}

func (g *GormStore) Migrate() error {
	if err := model.Migrate(g.db); err != nil {
		return wrap(CodeMigrate, "", "migrating schema", err)
	}
	return g.mappings.Migrate(g.db)
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormStore) Exists(ctx context.Context, key doc.Key) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", key.ID()).Count(&count).Error
	if err != nil {
		return false, wrap(CodeLoadingDoc, key.String(), "checking document existence", err)
	}
	return count > 0, nil
}

func (g *GormStore) LoadDocument(ctx context.Context, key doc.Key) (*doc.Document, error) {
	var row model.Document
	err := g.db.WithContext(ctx).Where("id = ?", key.ID()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return doc.New(key), nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "loading document", err)
	}

	d, err := rowToDoc(key, &row)
	if err != nil {
		return nil, wrap(CodeLoadingDoc, key.String(), "decoding document row", err)
	}

	if cls, err := g.loadClass(ctx, key.Wiki, key.FullName()); err != nil {
		return nil, err
	} else if cls != nil {
		d.Class = cls
	}

	if err := g.loadAttachments(ctx, d); err != nil {
		return nil, err
	}
	if err := g.loadObjects(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (g *GormStore) LoadDocumentRevision(ctx context.Context, key doc.Key, version doc.Version) (*doc.Document, error) {
	current, err := g.LoadDocument(ctx, key)
	if err != nil {
		return nil, err
	}
	if current.IsNew {
		return nil, wrap(CodeLoadingDoc, key.String(), "document has no revisions", nil)
	}
	ar, err := g.LoadArchive(ctx, key)
	if err != nil {
		return nil, err
	}
	return materializeRevision(current, ar, version)
}

func (g *GormStore) SaveDocument(ctx context.Context, d *doc.Document) error {
	if err := d.Key.Validate(); err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "invalid document key", err)
	}
	if d.Class != nil && d.Class.Mapping != nil {
		// fail closed before anything is written
		if err := d.Class.Mapping.Validate(d.Class); err != nil {
			return wrap(CodeMapping, d.Class.Name, "invalid custom mapping", err)
		}
	}
	dirty := d.IsNew || d.Dirty()
	return g.Transaction(ctx, func(tx Store) error {
		return tx.(*GormStore).saveDocument(ctx, d, dirty)
	})
}

func (g *GormStore) saveDocument(ctx context.Context, d *doc.Document, dirty bool) error {
	d.Touch(d.Author, time.Now())

	row := docToRow(d)
	if err := g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		return wrap(CodeSavingDoc, d.Key.String(), "saving document row", err)
	}

	if d.Class != nil {
		if err := g.saveClass(ctx, d.Key.Wiki, d.Class); err != nil {
			return err
		}
	}

	if err := g.saveObjects(ctx, d); err != nil {
		return err
	}
	if err := g.saveAttachmentRows(ctx, d); err != nil {
		return err
	}

	if dirty {
		if err := g.updateArchive(ctx, d); err != nil {
			return err
		}
		if g.backlinks {
			if err := g.SaveLinks(ctx, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *GormStore) DeleteDocument(ctx context.Context, d *doc.Document) error {
	id := d.Key.ID()
	return g.Transaction(ctx, func(tx Store) error {
		dbx := tx.(*GormStore).db.WithContext(ctx)

		var objects []model.Object
		if err := dbx.Where("doc_id = ?", id).Find(&objects).Error; err != nil {
			return wrap(CodeDeletingDoc, d.Key.String(), "listing objects", err)
		}
		for i := range objects {
			if err := tx.(*GormStore).deleteObjectRow(dbx, &objects[i]); err != nil {
				return wrap(CodeDeletingObject, d.Key.String(), "deleting object", err)
			}
		}

		var atts []model.Attachment
		if err := dbx.Where("doc_id = ?", id).Find(&atts).Error; err != nil {
			return wrap(CodeDeletingDoc, d.Key.String(), "listing attachments", err)
		}
		for _, a := range atts {
			if err := dbx.Where("attachment_id = ?", a.ID).Delete(&model.AttachmentContent{}).Error; err != nil {
				return wrap(CodeDeletingAttachment, d.Key.String(), "deleting attachment content", err)
			}
		}
		if err := dbx.Where("doc_id = ?", id).Delete(&model.Attachment{}).Error; err != nil {
			return wrap(CodeDeletingAttachment, d.Key.String(), "deleting attachments", err)
		}
		if err := dbx.Where("doc_id = ?", id).Delete(&model.AttachmentArchive{}).Error; err != nil {
			return wrap(CodeDeletingAttachment, d.Key.String(), "deleting attachment archives", err)
		}

		if err := dbx.Where("doc_id = ?", id).Delete(&model.Link{}).Error; err != nil {
			return wrap(CodeDeletingLinks, d.Key.String(), "deleting links", err)
		}
		if err := dbx.Where("doc_id = ?", id).Delete(&model.Lock{}).Error; err != nil {
			return wrap(CodeDeletingLock, d.Key.String(), "deleting lock", err)
		}
		if err := dbx.Where("doc_id = ?", id).Delete(&model.Archive{}).Error; err != nil {
			return wrap(CodeDeletingDoc, d.Key.String(), "deleting archive", err)
		}
		if err := dbx.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return wrap(CodeDeletingDoc, d.Key.String(), "deleting document row", err)
		}
		d.IsNew = true
		return nil
	})
}

func (g *GormStore) ListClasses(ctx context.Context, wiki string) ([]string, error) {
	var names []string
	err := g.db.WithContext(ctx).Model(&model.Class{}).Where("wiki = ?", wiki).
		Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, wrap(CodeLoadingClass, wiki, "listing classes", err)
	}
	return names, nil
}

// --- classes ---

func (g *GormStore) saveClass(ctx context.Context, wiki string, cls *doc.Class) error {
	def, err := json.Marshal(cls)
	if err != nil {
		return wrap(CodeSavingClass, cls.Name, "encoding class", err)
	}
	row := model.Class{Wiki: wiki, Name: cls.Name, Definition: string(def)}
	if err := g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return wrap(CodeSavingClass, cls.Name, "saving class row", err)
	}
	return nil
}

func (g *GormStore) loadClass(ctx context.Context, wiki, name string) (*doc.Class, error) {
	var row model.Class
	err := g.db.WithContext(ctx).Where("wiki = ? AND name = ?", wiki, name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingClass, name, "loading class row", err)
	}
	var cls doc.Class
	if err := json.Unmarshal([]byte(row.Definition), &cls); err != nil {
		return nil, wrap(CodeLoadingClass, name, "decoding class definition", err)
	}
	return &cls, nil
}

// resolveClass finds the declaring class for an object, preferring the one
// carried on the document itself.
func (g *GormStore) resolveClass(ctx context.Context, d *doc.Document, className string) (*doc.Class, error) {
	if d.Class != nil && d.Class.Name == className {
		return d.Class, nil
	}
	return g.loadClass(ctx, d.Key.Wiki, className)
}

// --- objects and properties ---

func (g *GormStore) saveObjects(ctx context.Context, d *doc.Document) error {
	dbx := g.db.WithContext(ctx)
	id := d.Key.ID()

	// replace-all: the object graph of a document is rewritten atomically
	// within the surrounding transaction
	var existing []model.Object
	if err := dbx.Where("doc_id = ?", id).Find(&existing).Error; err != nil {
		return wrap(CodeSavingObject, d.Key.String(), "listing existing objects", err)
	}
	for i := range existing {
		if err := g.deleteObjectRow(dbx, &existing[i]); err != nil {
			return wrap(CodeSavingObject, d.Key.String(), "clearing previous objects", err)
		}
	}

	for _, className := range d.ObjectClassNames() {
		cls, err := g.resolveClass(ctx, d, className)
		if err != nil {
			return err
		}
		for _, obj := range d.Objects[className] {
			row := model.Object{
				ID:        uuid.New().String(),
				DocID:     id,
				Wiki:      d.Key.Wiki,
				ClassName: className,
				Number:    obj.Number,
			}
			if err := dbx.Create(&row).Error; err != nil {
				return wrap(CodeSavingObject, d.Key.String(), "saving object row", err)
			}
			if err := g.saveProperties(dbx, row.ID, obj, cls); err != nil {
				return wrap(CodeSavingObject, d.Key.String(), "saving object properties", err)
			}
			if err := g.mappings.project(dbx, row.ID, obj); err != nil {
				return wrap(CodeMapping, className, "projecting custom mapping", err)
			}
		}
	}
	return nil
}

func (g *GormStore) deleteObjectRow(dbx *gorm.DB, row *model.Object) error {
	for _, table := range []any{
		&model.StringProperty{}, &model.LargeStringProperty{}, &model.IntegerProperty{},
		&model.LongProperty{}, &model.FloatProperty{}, &model.DoubleProperty{},
		&model.DateProperty{}, &model.ListProperty{}, &model.DBListProperty{},
	} {
		if err := dbx.Where("object_id = ?", row.ID).Delete(table).Error; err != nil {
			return err
		}
	}
	if err := g.mappings.drop(dbx, row.ClassName, row.ID); err != nil {
		return err
	}
	return dbx.Where("id = ?", row.ID).Delete(&model.Object{}).Error
}

// saveProperties picks the per-type table from the declaring field when the
// class is known, falling back to the property's own kind.
func (g *GormStore) saveProperties(dbx *gorm.DB, objectID string, obj *doc.Object, cls *doc.Class) error {
	for _, name := range obj.Order {
		p := obj.Properties[name]
		var field *doc.Field
		if cls != nil {
			field = cls.Field(name)
		}
		if err := g.saveProperty(dbx, objectID, name, p, field); err != nil {
			return err
		}
	}
	return nil
}

func (g *GormStore) saveProperty(dbx *gorm.DB, objectID, name string, p doc.Property, field *doc.Field) error {
	if field != nil {
		switch field.Type {
		case doc.FieldTextArea:
			return dbx.Create(&model.LargeStringProperty{ObjectID: objectID, Name: name, Value: p.Text}).Error
		case doc.FieldDBList:
			for i, v := range p.List {
				if err := dbx.Create(&model.DBListProperty{ObjectID: objectID, Name: name, Idx: i, Value: v}).Error; err != nil {
					return err
				}
			}
			return nil
		}
	}
	switch p.Kind {
	case doc.KindString:
		return dbx.Create(&model.StringProperty{ObjectID: objectID, Name: name, Value: p.Text}).Error
	case doc.KindInt:
		return dbx.Create(&model.IntegerProperty{ObjectID: objectID, Name: name, Value: int32(p.Number)}).Error
	case doc.KindLong:
		return dbx.Create(&model.LongProperty{ObjectID: objectID, Name: name, Value: p.Number}).Error
	case doc.KindFloat:
		return dbx.Create(&model.FloatProperty{ObjectID: objectID, Name: name, Value: float32(p.Real)}).Error
	case doc.KindDouble:
		return dbx.Create(&model.DoubleProperty{ObjectID: objectID, Name: name, Value: p.Real}).Error
	case doc.KindDate:
		return dbx.Create(&model.DateProperty{ObjectID: objectID, Name: name, Value: p.Date}).Error
	case doc.KindStringList:
		for i, v := range p.List {
			if err := dbx.Create(&model.ListProperty{ObjectID: objectID, Name: name, Idx: i, Value: v}).Error; err != nil {
				return err
			}
		}
		return nil
	}
	logrus.Warnf("property %s has unknown kind %d, skipped", name, p.Kind)
	return nil
}

func (g *GormStore) loadObjects(ctx context.Context, d *doc.Document) error {
	dbx := g.db.WithContext(ctx)
	var rows []model.Object
	if err := dbx.Where("doc_id = ?", d.Key.ID()).Order("class_name, number").Find(&rows).Error; err != nil {
		return wrap(CodeLoadingObject, d.Key.String(), "listing objects", err)
	}
	classes := make(map[string]*doc.Class)
	for i := range rows {
		row := &rows[i]
		cls, cached := classes[row.ClassName]
		if !cached {
			var err error
			cls, err = g.resolveClass(ctx, d, row.ClassName)
			if err != nil {
				return err
			}
			classes[row.ClassName] = cls
		}
		obj, err := g.loadObject(dbx, row, cls)
		if err != nil {
			return wrap(CodeLoadingObject, d.Key.String(), "loading object properties", err)
		}
		d.Objects[row.ClassName] = append(d.Objects[row.ClassName], obj)
	}
	return nil
}

func (g *GormStore) loadObject(dbx *gorm.DB, row *model.Object, cls *doc.Class) (*doc.Object, error) {
	obj := doc.NewObject(row.ClassName)
	obj.Number = row.Number

	var strs []model.StringProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&strs).Error; err != nil {
		return nil, err
	}
	for _, r := range strs {
		obj.PutProperty(r.Name, doc.StringProperty(r.Value))
	}
	var large []model.LargeStringProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&large).Error; err != nil {
		return nil, err
	}
	for _, r := range large {
		obj.PutProperty(r.Name, doc.StringProperty(r.Value))
	}
	var ints []model.IntegerProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&ints).Error; err != nil {
		return nil, err
	}
	for _, r := range ints {
		obj.PutProperty(r.Name, doc.IntProperty(r.Value))
	}
	var longs []model.LongProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&longs).Error; err != nil {
		return nil, err
	}
	for _, r := range longs {
		obj.PutProperty(r.Name, doc.LongProperty(r.Value))
	}
	var floats []model.FloatProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&floats).Error; err != nil {
		return nil, err
	}
	for _, r := range floats {
		obj.PutProperty(r.Name, doc.FloatProperty(r.Value))
	}
	var doubles []model.DoubleProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&doubles).Error; err != nil {
		return nil, err
	}
	for _, r := range doubles {
		obj.PutProperty(r.Name, doc.DoubleProperty(r.Value))
	}
	var dates []model.DateProperty
	if err := dbx.Where("object_id = ?", row.ID).Find(&dates).Error; err != nil {
		return nil, err
	}
	for _, r := range dates {
		obj.PutProperty(r.Name, doc.DateProperty(r.Value))
	}
	var lists []model.ListProperty
	if err := dbx.Where("object_id = ?", row.ID).Order("name, idx").Find(&lists).Error; err != nil {
		return nil, err
	}
	for name, values := range groupListRows(lists) {
		obj.PutProperty(name, doc.ListProperty(values, listShape(cls, name)))
	}
	var dblists []model.DBListProperty
	if err := dbx.Where("object_id = ?", row.ID).Order("name, idx").Find(&dblists).Error; err != nil {
		return nil, err
	}
	for name, values := range groupDBListRows(dblists) {
		obj.PutProperty(name, doc.ListProperty(values, listShape(cls, name)))
	}

	// values from fields no longer declared by the class are dropped
	obj.Prune(cls)
	return obj, nil
}

func groupListRows(rows []model.ListProperty) map[string][]string {
	grouped := make(map[string][]string)
	for _, r := range rows {
		grouped[r.Name] = append(grouped[r.Name], r.Value)
	}
	return grouped
}

func groupDBListRows(rows []model.DBListProperty) map[string][]string {
	grouped := make(map[string][]string)
	for _, r := range rows {
		grouped[r.Name] = append(grouped[r.Name], r.Value)
	}
	return grouped
}

func listShape(cls *doc.Class, name string) bool {
	if cls == nil {
		return false
	}
	if f := cls.Field(name); f != nil {
		return f.RelationalStorage
	}
	return false
}

// --- archive ---

func (g *GormStore) LoadArchive(ctx context.Context, key doc.Key) (*archive.Archive, error) {
	var row model.Archive
	err := g.db.WithContext(ctx).Where("doc_id = ?", key.ID()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return archive.New(key), nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "loading archive row", err)
	}
	codec, err := compress.ByName(row.Codec)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "resolving archive codec", err)
	}
	blob, err := codec.Decode(row.Blob)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "decompressing archive", err)
	}
	ar, err := archive.Unmarshal(blob)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, key.String(), "decoding archive", err)
	}
	return ar, nil
}

func (g *GormStore) updateArchive(ctx context.Context, d *doc.Document) error {
	ar, err := g.LoadArchive(ctx, d.Key)
	if err != nil {
		return err
	}
	if err := ar.Update(d); err != nil {
		return wrap(CodeSavingArchive, d.Key.String(), "appending revision", err)
	}
	return g.storeArchive(ctx, ar)
}

func (g *GormStore) ResetArchive(ctx context.Context, d *doc.Document) error {
	ar := archive.New(d.Key)
	ar.Reset(d)
	return g.storeArchive(ctx, ar)
}

func (g *GormStore) storeArchive(ctx context.Context, ar *archive.Archive) error {
	blob, err := ar.Marshal()
	if err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "encoding archive", err)
	}
	encoded, err := g.codec.Encode(blob)
	if err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "compressing archive", err)
	}
	row := model.Archive{DocID: ar.Key.ID(), Wiki: ar.Key.Wiki, Codec: g.codecName, Blob: encoded}
	if err := g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return wrap(CodeSavingArchive, ar.Key.String(), "saving archive row", err)
	}
	return nil
}

// --- locks ---

func (g *GormStore) LoadLock(ctx context.Context, docID int64) (*doc.Lock, error) {
	var row model.Lock
	err := g.db.WithContext(ctx).Where("doc_id = ?", docID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingLock, "", "loading lock", err)
	}
	return &doc.Lock{DocID: row.DocID, Owner: row.Owner, Token: row.Token, Date: row.Date}, nil
}

func (g *GormStore) SaveLock(ctx context.Context, wiki string, lock *doc.Lock) error {
	if lock.Token == "" {
		lock.Token = uuid.New().String()
	}
	if lock.Date.IsZero() {
		lock.Date = time.Now()
	}
	row := model.Lock{DocID: lock.DocID, Wiki: wiki, Owner: lock.Owner, Token: lock.Token, Date: lock.Date}
	if err := g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return wrap(CodeSavingLock, lock.Owner, "saving lock", err)
	}
	return nil
}

func (g *GormStore) DeleteLock(ctx context.Context, lock *doc.Lock) error {
	if err := g.db.WithContext(ctx).Where("doc_id = ?", lock.DocID).Delete(&model.Lock{}).Error; err != nil {
		return wrap(CodeDeletingLock, lock.Owner, "deleting lock", err)
	}
	return nil
}

func (g *GormStore) ExpireLocks(ctx context.Context, wiki string, before time.Time) (int, error) {
	res := g.db.WithContext(ctx).Where("wiki = ? AND date < ?", wiki, before).Delete(&model.Lock{})
	if res.Error != nil {
		return 0, wrap(CodeDeletingLock, wiki, "expiring locks", res.Error)
	}
	return int(res.RowsAffected), nil
}

// --- links ---

func (g *GormStore) LoadLinks(ctx context.Context, docID int64) ([]doc.Link, error) {
	var rows []model.Link
	err := g.db.WithContext(ctx).Where("doc_id = ?", docID).Order("target").Find(&rows).Error
	if err != nil {
		return nil, wrap(CodeLoadingLinks, "", "loading links", err)
	}
	links := make([]doc.Link, 0, len(rows))
	for _, r := range rows {
		links = append(links, doc.Link{DocID: r.DocID, Target: r.Target, SourceFullName: r.FullName})
	}
	return links, nil
}

func (g *GormStore) SaveLinks(ctx context.Context, d *doc.Document) error {
	edges := link.Edges(d)
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doc_id = ?", d.Key.ID()).Delete(&model.Link{}).Error; err != nil {
			return wrap(CodeSavingLinks, d.Key.String(), "clearing previous links", err)
		}
		for _, e := range edges {
			row := model.Link{DocID: e.DocID, Target: e.Target, Wiki: d.Key.Wiki, FullName: e.SourceFullName}
			if err := tx.Create(&row).Error; err != nil {
				return wrap(CodeSavingLinks, d.Key.String(), "saving link", err)
			}
		}
		return nil
	})
}

func (g *GormStore) DeleteLinks(ctx context.Context, docID int64) error {
	if err := g.db.WithContext(ctx).Where("doc_id = ?", docID).Delete(&model.Link{}).Error; err != nil {
		return wrap(CodeDeletingLinks, "", "deleting links", err)
	}
	return nil
}

func (g *GormStore) LoadBacklinks(ctx context.Context, wiki, target string) ([]string, error) {
	var names []string
	err := g.db.WithContext(ctx).Model(&model.Link{}).
		Where("wiki = ? AND target = ?", wiki, target).
		Distinct().Order("full_name").Pluck("full_name", &names).Error
	if err != nil {
		return nil, wrap(CodeLoadingLinks, target, "loading backlinks", err)
	}
	return names, nil
}

// --- attachments ---

func (g *GormStore) LoadAttachmentContent(ctx context.Context, d *doc.Document, filename string) ([]byte, error) {
	row, err := g.findAttachment(ctx, d, filename)
	if err != nil {
		return nil, err
	}
	var content model.AttachmentContent
	err = g.db.WithContext(ctx).Where("attachment_id = ?", row.ID).First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap(CodeLoadingAttachment, filename, "attachment has no content", nil)
	}
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "loading attachment content", err)
	}
	codec, err := compress.ByName(content.Codec)
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "resolving attachment codec", err)
	}
	data, err := codec.Decode(content.Content)
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "decompressing attachment", err)
	}
	return data, nil
}

func (g *GormStore) SaveAttachmentContent(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	return g.Transaction(ctx, func(tx Store) error {
		gs := tx.(*GormStore)
		row, err := gs.findAttachment(ctx, d, att.Filename)
		if err != nil {
			if ErrorCode(err) != CodeLoadingAttachment {
				return err
			}
			row = &model.Attachment{ID: uuid.New().String(), DocID: d.Key.ID()}
		}
		row.Filename = att.Filename
		row.Version = att.Version.String()
		row.Author = att.Author
		row.Comment = att.Comment
		row.Size = int64(len(att.Content))
		row.Date = att.Date
		if err := gs.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "saving attachment row", err)
		}
		encoded, err := gs.codec.Encode(att.Content)
		if err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "compressing attachment", err)
		}
		content := model.AttachmentContent{AttachmentID: row.ID, Codec: gs.codecName, Content: encoded}
		if err := gs.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&content).Error; err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "saving attachment content", err)
		}
		return gs.appendAttachmentRevision(ctx, d, att)
	})
}

func (g *GormStore) DeleteAttachment(ctx context.Context, d *doc.Document, filename string) error {
	return g.Transaction(ctx, func(tx Store) error {
		gs := tx.(*GormStore)
		row, err := gs.findAttachment(ctx, d, filename)
		if err != nil {
			return err
		}
		dbx := gs.db.WithContext(ctx)
		if err := dbx.Where("attachment_id = ?", row.ID).Delete(&model.AttachmentContent{}).Error; err != nil {
			return wrap(CodeDeletingAttachment, filename, "deleting attachment content", err)
		}
		if err := dbx.Where("id = ?", row.ID).Delete(&model.Attachment{}).Error; err != nil {
			return wrap(CodeDeletingAttachment, filename, "deleting attachment row", err)
		}
		if err := gs.DeleteAttachmentArchive(ctx, d, filename); err != nil {
			return err
		}
		d.RemoveAttachment(filename)
		return nil
	})
}

// --- attachment archive ---

func (g *GormStore) LoadAttachmentArchive(ctx context.Context, d *doc.Document, filename string) ([]doc.AttachmentRevision, error) {
	var row model.AttachmentArchive
	err := g.db.WithContext(ctx).Where("doc_id = ? AND filename = ?", d.Key.ID(), filename).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "loading attachment archive row", err)
	}
	codec, err := compress.ByName(row.Codec)
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "resolving attachment archive codec", err)
	}
	blob, err := codec.Decode(row.Blob)
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "decompressing attachment archive", err)
	}
	var chain []doc.AttachmentRevision
	if err := json.Unmarshal(blob, &chain); err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "decoding attachment archive", err)
	}
	return chain, nil
}

func (g *GormStore) SaveAttachmentArchive(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	return g.appendAttachmentRevision(ctx, d, att)
}

func (g *GormStore) DeleteAttachmentArchive(ctx context.Context, d *doc.Document, filename string) error {
	err := g.db.WithContext(ctx).
		Where("doc_id = ? AND filename = ?", d.Key.ID(), filename).
		Delete(&model.AttachmentArchive{}).Error
	if err != nil {
		return wrap(CodeDeletingAttachment, filename, "deleting attachment archive", err)
	}
	return nil
}

func (g *GormStore) appendAttachmentRevision(ctx context.Context, d *doc.Document, att *doc.Attachment) error {
	chain, err := g.LoadAttachmentArchive(ctx, d, att.Filename)
	if err != nil {
		return err
	}
	chain = doc.AppendAttachmentRevision(chain, att)
	blob, err := json.Marshal(chain)
	if err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "encoding attachment archive", err)
	}
	encoded, err := g.codec.Encode(blob)
	if err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "compressing attachment archive", err)
	}
	row := model.AttachmentArchive{
		DocID:    d.Key.ID(),
		Filename: att.Filename,
		Wiki:     d.Key.Wiki,
		Codec:    g.codecName,
		Blob:     encoded,
	}
	if err := g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return wrap(CodeSavingAttachment, att.Filename, "saving attachment archive", err)
	}
	return nil
}

func (g *GormStore) findAttachment(ctx context.Context, d *doc.Document, filename string) (*model.Attachment, error) {
	var row model.Attachment
	err := g.db.WithContext(ctx).Where("doc_id = ? AND filename = ?", d.Key.ID(), filename).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap(CodeLoadingAttachment, filename, "attachment not found", nil)
	}
	if err != nil {
		return nil, wrap(CodeLoadingAttachment, filename, "loading attachment row", err)
	}
	return &row, nil
}

// saveAttachmentRows syncs attachment metadata with the document, removing
// rows for attachments no longer present.
func (g *GormStore) saveAttachmentRows(ctx context.Context, d *doc.Document) error {
	dbx := g.db.WithContext(ctx)
	var rows []model.Attachment
	if err := dbx.Where("doc_id = ?", d.Key.ID()).Find(&rows).Error; err != nil {
		return wrap(CodeSavingAttachment, d.Key.String(), "listing attachments", err)
	}
	byName := make(map[string]*model.Attachment, len(rows))
	for i := range rows {
		byName[rows[i].Filename] = &rows[i]
	}
	for _, att := range d.Attachments {
		row, ok := byName[att.Filename]
		if !ok {
			row = &model.Attachment{ID: uuid.New().String(), DocID: d.Key.ID(), Filename: att.Filename}
		}
		delete(byName, att.Filename)
		row.Version = att.Version.String()
		row.Author = att.Author
		row.Comment = att.Comment
		row.Date = att.Date
		if att.Content != nil {
			row.Size = int64(len(att.Content))
		} else if row.Size == 0 {
			row.Size = att.Size
		}
		if err := dbx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
			return wrap(CodeSavingAttachment, att.Filename, "saving attachment row", err)
		}
		if att.Content != nil {
			encoded, err := g.codec.Encode(att.Content)
			if err != nil {
				return wrap(CodeSavingAttachment, att.Filename, "compressing attachment", err)
			}
			content := model.AttachmentContent{AttachmentID: row.ID, Codec: g.codecName, Content: encoded}
			if err := dbx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&content).Error; err != nil {
				return wrap(CodeSavingAttachment, att.Filename, "saving attachment content", err)
			}
			if err := g.appendAttachmentRevision(ctx, d, att); err != nil {
				return err
			}
		}
	}
	// leftovers were removed from the document
	for _, row := range byName {
		if err := dbx.Where("attachment_id = ?", row.ID).Delete(&model.AttachmentContent{}).Error; err != nil {
			return wrap(CodeDeletingAttachment, row.Filename, "deleting attachment content", err)
		}
		if err := dbx.Where("id = ?", row.ID).Delete(&model.Attachment{}).Error; err != nil {
			return wrap(CodeDeletingAttachment, row.Filename, "deleting attachment row", err)
		}
	}
	return nil
}

func (g *GormStore) loadAttachments(ctx context.Context, d *doc.Document) error {
	var rows []model.Attachment
	err := g.db.WithContext(ctx).Where("doc_id = ?", d.Key.ID()).Order("filename").Find(&rows).Error
	if err != nil {
		return wrap(CodeLoadingAttachment, d.Key.String(), "listing attachments", err)
	}
	for _, r := range rows {
		version, err := doc.ParseVersion(r.Version)
		if err != nil {
			return wrap(CodeLoadingAttachment, r.Filename, "decoding attachment version", err)
		}
		d.Attachments = append(d.Attachments, &doc.Attachment{
			Filename: r.Filename,
			Author:   r.Author,
			Version:  version,
			Comment:  r.Comment,
			Date:     r.Date,
			Size:     r.Size,
		})
	}
	return nil
}

// --- search ---

func (g *GormStore) Search(ctx context.Context, query string, limit, offset int, params ...any) ([][]any, error) {
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
		if offset > 0 {
			query += " OFFSET ?"
			params = append(params, offset)
		}
	}
	rows, err := g.db.WithContext(ctx).Raw(query, params...).Rows()
	if err != nil {
		return nil, wrap(CodeSearch, "", "running search", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrap(CodeSearch, "", "reading search columns", err)
	}
	var results [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrap(CodeSearch, "", "scanning search row", err)
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(CodeSearch, "", "iterating search rows", err)
	}
	return results, nil
}

func (g *GormStore) SearchDocumentNames(ctx context.Context, wiki, where string, limit, offset int, params ...any) ([]string, error) {
	q := g.db.WithContext(ctx).Model(&model.Document{}).Where("wiki = ?", wiki)
	if where != "" {
		q = q.Where(where, params...)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var rows []model.Document
	if err := q.Select("space", "name").Order("space, name").Find(&rows).Error; err != nil {
		return nil, wrap(CodeSearch, wiki, "searching document names", err)
	}
	seen := make(map[string]bool, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		full := r.Space + "." + r.Name
		if !seen[full] {
			seen[full] = true
			names = append(names, full)
		}
	}
	return names, nil
}

// --- row mapping ---

func docToRow(d *doc.Document) *model.Document {
	return &model.Document{
		ID:              d.Key.ID(),
		Wiki:            d.Key.Wiki,
		Space:           d.Key.Space,
		Name:            d.Key.Name,
		Language:        d.Key.Language,
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
}

func rowToDoc(key doc.Key, row *model.Document) (*doc.Document, error) {
	version, err := doc.ParseVersion(row.Version)
	if err != nil {
		return nil, err
	}
	d := doc.New(key)
	d.IsNew = false
	d.DefaultLanguage = row.DefaultLanguage
	d.Title = row.Title
	d.Parent = row.Parent
	d.Format = row.Format
	d.Author = row.Author
	d.ContentAuthor = row.ContentAuthor
	d.Creator = row.Creator
	d.Comment = row.Comment
	d.MinorEdit = row.MinorEdit
	d.Version = version
	d.Content = row.Content
	d.CreationDate = row.CreationDate
	d.Date = row.Date
	d.ContentDate = row.ContentDate
	return d, nil
}

// materializeRevision rebuilds a past revision from the current document and
// its archive.
func materializeRevision(current *doc.Document, ar *archive.Archive, version doc.Version) (*doc.Document, error) {
	content, node, err := ar.Revision(version)
	if err != nil {
		return nil, wrap(CodeLoadingArchive, current.Key.String(), "materializing revision", err)
	}
	rev := current.Copy()
	rev.Content = content
	rev.Version = node.Version
	rev.Author = node.Author
	rev.Comment = node.Comment
	rev.Date = node.Date
	rev.FromCache = false
	return rev, nil
}
