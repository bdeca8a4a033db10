package doc

import (
	"fmt"
)

// MappingColumn binds one class field to a column of a bespoke table.
type MappingColumn struct {
	Field  string `json:"field"`
	Column string `json:"column"`
	Type   string `json:"type"`
}

// Mapping redirects a class's persisted properties into a bespoke relational
// table instead of the generic per-type property tables.
type Mapping struct {
	Table   string          `json:"table"`
	Columns []MappingColumn `json:"columns"`
}

// column types accepted per field type family
var mappingTypes = map[FieldType][]string{
	FieldString:     {"string", "text"},
	FieldTextArea:   {"string", "text"},
	FieldPassword:   {"string", "text"},
	FieldNumber:     {"integer", "long", "float", "double"},
	FieldBoolean:    {"boolean", "integer"},
	FieldDate:       {"date", "timestamp"},
	FieldStaticList: {"string", "text"},
	FieldDBList:     {"string", "text"},
}

// Validate checks the mapping structurally against its class without touching
// any schema: every column needs a type, must name a declared field, and the
// column type must be compatible with the field type.
func (m *Mapping) Validate(c *Class) error {
	if m.Table == "" {
		return fmt.Errorf("custom mapping for class %s: missing table name", c.Name)
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("custom mapping for class %s: no columns declared", c.Name)
	}
	seen := make(map[string]bool, len(m.Columns))
	for _, col := range m.Columns {
		if col.Type == "" {
			return fmt.Errorf("custom mapping for class %s: column %s has no type", c.Name, col.Column)
		}
		f := c.Field(col.Field)
		if f == nil {
			return fmt.Errorf("custom mapping for class %s: field %s is not declared by the class", c.Name, col.Field)
		}
		if !typeAllowed(f.Type, col.Type) {
			return fmt.Errorf("custom mapping for class %s: column type %s is incompatible with field %s (%s)",
				c.Name, col.Type, f.Name, f.Type)
		}
		if seen[col.Column] {
			return fmt.Errorf("custom mapping for class %s: duplicate column %s", c.Name, col.Column)
		}
		seen[col.Column] = true
	}
	return nil
}

func typeAllowed(ft FieldType, colType string) bool {
	for _, t := range mappingTypes[ft] {
		if t == colType {
			return true
		}
	}
	return false
}

// HasValidMapping reports whether the class declares a structurally valid
// custom mapping, without committing anything.
func (c *Class) HasValidMapping() bool {
	return c.Mapping != nil && c.Mapping.Validate(c) == nil
}
