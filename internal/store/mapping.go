package store

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emrgen/wikistore/internal/doc"
)

// MappingRegistry holds the custom mappings accepted for the relational
// backend. It is built once at startup and treated as immutable afterwards;
// mapped tables are created by Migrate, never while saving a document.
type MappingRegistry struct {
	mappings map[string]*doc.Mapping
	classes  map[string]*doc.Class
}

func NewMappingRegistry() *MappingRegistry {
	return &MappingRegistry{
		mappings: make(map[string]*doc.Mapping),
		classes:  make(map[string]*doc.Class),
	}
}

// Register validates the class's mapping and accepts it. An invalid mapping
// fails closed here, before any schema is touched.
func (r *MappingRegistry) Register(c *doc.Class) error {
	if c.Mapping == nil {
		return wrap(CodeMapping, c.Name, "class declares no custom mapping", nil)
	}
	if err := c.Mapping.Validate(c); err != nil {
		return wrap(CodeMapping, c.Name, "invalid custom mapping", err)
	}
	r.mappings[c.Name] = c.Mapping
	r.classes[c.Name] = c.Copy()
	logrus.Infof("registered custom mapping for class %s into table %s", c.Name, c.Mapping.Table)
	return nil
}

// Lookup returns the accepted mapping for a class, if any.
func (r *MappingRegistry) Lookup(className string) (*doc.Mapping, bool) {
	m, ok := r.mappings[className]
	return m, ok
}

var mappingColumnSQL = map[string]string{
	"string":    "VARCHAR(255)",
	"text":      "TEXT",
	"integer":   "INTEGER",
	"long":      "BIGINT",
	"float":     "REAL",
	"double":    "DOUBLE PRECISION",
	"boolean":   "BOOLEAN",
	"date":      "TIMESTAMP",
	"timestamp": "TIMESTAMP",
}

// Migrate creates the bespoke tables for every registered mapping.
func (r *MappingRegistry) Migrate(db *gorm.DB) error {
	for className, m := range r.mappings {
		cols := make([]string, 0, len(m.Columns)+1)
		cols = append(cols, "object_id VARCHAR(64) PRIMARY KEY")
		for _, c := range m.Columns {
			sqlType, ok := mappingColumnSQL[c.Type]
			if !ok {
				return wrap(CodeMapping, className, fmt.Sprintf("column %s has unmappable type %s", c.Column, c.Type), nil)
			}
			cols = append(cols, fmt.Sprintf("%s %s", c.Column, sqlType))
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", m.Table, strings.Join(cols, ", "))
		if err := db.Exec(stmt).Error; err != nil {
			return wrap(CodeMigrate, className, "creating custom mapping table", err)
		}
	}
	return nil
}

// project writes one object's property values into its bespoke table,
// replacing the previous row.
func (r *MappingRegistry) project(tx *gorm.DB, objectID string, obj *doc.Object) error {
	m, ok := r.mappings[obj.ClassName]
	if !ok {
		return nil
	}
	row := map[string]any{"object_id": objectID}
	for _, col := range m.Columns {
		p, ok := obj.Get(col.Field)
		if !ok {
			continue
		}
		switch p.Kind {
		case doc.KindInt, doc.KindLong:
			row[col.Column] = p.Number
		case doc.KindFloat, doc.KindDouble:
			row[col.Column] = p.Real
		case doc.KindDate:
			row[col.Column] = p.Date
		default:
			row[col.Column] = p.Value()
		}
	}
	if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE object_id = ?", m.Table), objectID).Error; err != nil {
		return err
	}
	return tx.Table(m.Table).Create(row).Error
}

// drop removes an object's projected row.
func (r *MappingRegistry) drop(tx *gorm.DB, className, objectID string) error {
	m, ok := r.mappings[className]
	if !ok {
		return nil
	}
	return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE object_id = ?", m.Table), objectID).Error
}
