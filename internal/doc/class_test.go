package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagClass() *Class {
	c := NewClass("XWiki.TagClass")
	_ = c.AddField(&Field{Name: "tags", Type: FieldStaticList, RelationalStorage: true})
	_ = c.AddField(&Field{Name: "count", Type: FieldNumber, NumberType: NumberInteger})
	return c
}

func TestClass_AddFieldRejectsDuplicates(t *testing.T) {
	c := tagClass()
	err := c.AddField(&Field{Name: "tags", Type: FieldString})
	assert.Error(t, err)
	assert.Equal(t, []string{"tags", "count"}, c.FieldNames())
}

func TestClass_RemoveFieldPrunesOnLoad(t *testing.T) {
	c := tagClass()
	obj := c.NewObject()
	assert.NoError(t, obj.Set(c, "tags", []string{"go", "wiki"}))
	assert.NoError(t, obj.Set(c, "count", 2))

	c.RemoveField("count")
	obj.Prune(c)

	_, ok := obj.Get("count")
	assert.False(t, ok)
	tags, ok := obj.Get("tags")
	assert.True(t, ok)
	assert.Equal(t, []string{"go", "wiki"}, tags.List)
}

func TestObject_SetRejectsUnknownField(t *testing.T) {
	c := tagClass()
	obj := c.NewObject()
	assert.Error(t, obj.Set(c, "missing", "value"))
}

func TestClass_CustomClassFactory(t *testing.T) {
	RegisterCustomClass("tagged", func(className string) *Object {
		obj := NewObject(className)
		obj.PutProperty("origin", StringProperty("custom"))
		return obj
	})

	c := NewClass("XWiki.TagClass")
	c.CustomClass = "tagged"
	obj := c.NewObject()
	origin, ok := obj.Get("origin")
	assert.True(t, ok)
	assert.Equal(t, "custom", origin.Text)

	// unregistered identifiers fall back to the default representation
	c.CustomClass = "unregistered"
	obj = c.NewObject()
	_, ok = obj.Get("origin")
	assert.False(t, ok)
}

func TestMapping_Validate(t *testing.T) {
	c := tagClass()

	valid := &Mapping{Table: "custom_tags", Columns: []MappingColumn{
		{Field: "tags", Column: "tag_list", Type: "text"},
		{Field: "count", Column: "tag_count", Type: "integer"},
	}}
	assert.NoError(t, valid.Validate(c))
	c.Mapping = valid
	assert.True(t, c.HasValidMapping())

	missingTable := &Mapping{Columns: valid.Columns}
	assert.Error(t, missingTable.Validate(c))

	undeclared := &Mapping{Table: "custom_tags", Columns: []MappingColumn{
		{Field: "ghost", Column: "ghost", Type: "text"},
	}}
	assert.Error(t, undeclared.Validate(c))

	incompatible := &Mapping{Table: "custom_tags", Columns: []MappingColumn{
		{Field: "count", Column: "tag_count", Type: "text"},
	}}
	assert.Error(t, incompatible.Validate(c))

	duplicate := &Mapping{Table: "custom_tags", Columns: []MappingColumn{
		{Field: "tags", Column: "value", Type: "text"},
		{Field: "count", Column: "value", Type: "integer"},
	}}
	assert.Error(t, duplicate.Validate(c))
}
