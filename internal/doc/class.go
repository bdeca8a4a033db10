package doc

import (
	"fmt"
	"regexp"
)

// Field is a typed descriptor inside a class. Field names are unique within
// their class.
type Field struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	PrettyName string    `json:"pretty_name,omitempty"`
	Validation string    `json:"validation,omitempty"` // regular expression checked on set
	NumberType string    `json:"number_type,omitempty"`
	// RelationalStorage selects joined-row storage for list values instead
	// of a flat delimiter-joined string.
	RelationalStorage bool     `json:"relational_storage,omitempty"`
	Values            []string `json:"values,omitempty"` // static list choices
	Query             string   `json:"query,omitempty"`  // db-backed list source
}

func (f *Field) checkValidation(text string) error {
	if f.Validation == "" {
		return nil
	}
	re, err := regexp.Compile(f.Validation)
	if err != nil {
		return fmt.Errorf("field %s: invalid validation pattern %q", f.Name, f.Validation)
	}
	if !re.MatchString(text) {
		return fmt.Errorf("field %s: value %q does not match %q", f.Name, text, f.Validation)
	}
	return nil
}

// Parse converts canonical text into a typed property for this field.
func (f *Field) Parse(text string) (Property, error) {
	return fieldHandlers[f.Type].parse(f, text)
}

// Coerce validates and converts an arbitrary value for this field.
func (f *Field) Coerce(v any) (Property, error) {
	return fieldHandlers[f.Type].coerce(f, v)
}

// Display renders a stored property under the given mode.
func (f *Field) Display(p Property, mode DisplayMode) string {
	switch mode {
	case DisplayHidden:
		return ""
	case DisplayEdit, DisplaySearch:
		return p.Value()
	default:
		return fieldHandlers[f.Type].view(f, p)
	}
}

// Class is a named, ordered set of field descriptors. A class may declare a
// custom object representation and a custom relational mapping.
type Class struct {
	Name        string   `json:"name"`
	Fields      []*Field `json:"fields"`
	CustomClass string   `json:"custom_class,omitempty"`
	Mapping     *Mapping `json:"mapping,omitempty"`
}

func NewClass(name string) *Class {
	return &Class{Name: name}
}

// Field returns the descriptor with the given name, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddField appends a descriptor, rejecting duplicate names.
func (c *Class) AddField(f *Field) error {
	if c.Field(f.Name) != nil {
		return fmt.Errorf("class %s already has a field %s", c.Name, f.Name)
	}
	c.Fields = append(c.Fields, f)
	return nil
}

// RemoveField drops a descriptor. Existing instances keep their other
// properties; the removed one is ignored on the next load.
func (c *Class) RemoveField(name string) {
	for i, f := range c.Fields {
		if f.Name == name {
			c.Fields = append(c.Fields[:i], c.Fields[i+1:]...)
			return
		}
	}
}

// FieldNames returns the declared field names in order.
func (c *Class) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	return names
}

// NewObject creates an instance of this class, substituting a registered
// custom representation when the class declares one.
func (c *Class) NewObject() *Object {
	if c.CustomClass != "" {
		if obj := newCustomObject(c.CustomClass, c.Name); obj != nil {
			return obj
		}
	}
	return NewObject(c.Name)
}

func (c *Class) Copy() *Class {
	if c == nil {
		return nil
	}
	cp := &Class{Name: c.Name, CustomClass: c.CustomClass}
	for _, f := range c.Fields {
		fc := *f
		fc.Values = append([]string(nil), f.Values...)
		cp.Fields = append(cp.Fields, &fc)
	}
	if c.Mapping != nil {
		m := *c.Mapping
		m.Columns = append([]MappingColumn(nil), c.Mapping.Columns...)
		cp.Mapping = &m
	}
	return cp
}
