package doc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestField_CoerceNumber(t *testing.T) {
	integer := &Field{Name: "count", Type: FieldNumber, NumberType: NumberInteger}
	long := &Field{Name: "big", Type: FieldNumber, NumberType: NumberLong}
	double := &Field{Name: "ratio", Type: FieldNumber, NumberType: NumberDouble}

	p, err := integer.Coerce(42)
	assert.NoError(t, err)
	assert.Equal(t, KindInt, p.Kind)
	assert.Equal(t, int64(42), p.Number)

	p, err = long.Coerce("9000000000")
	assert.NoError(t, err)
	assert.Equal(t, KindLong, p.Kind)

	p, err = double.Coerce(1.5)
	assert.NoError(t, err)
	assert.Equal(t, KindDouble, p.Kind)
	assert.Equal(t, 1.5, p.Real)

	_, err = integer.Coerce("not a number")
	assert.Error(t, err)
}

func TestField_CoerceBoolean(t *testing.T) {
	f := &Field{Name: "active", Type: FieldBoolean}

	p, err := f.Coerce(true)
	assert.NoError(t, err)
	assert.Equal(t, KindInt, p.Kind)
	assert.Equal(t, int64(1), p.Number)

	p, err = f.Coerce("no")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), p.Number)

	_, err = f.Coerce("maybe")
	assert.Error(t, err)
}

func TestField_CoerceDate(t *testing.T) {
	f := &Field{Name: "due", Type: FieldDate}

	now := time.Now()
	p, err := f.Coerce(now)
	assert.NoError(t, err)
	assert.True(t, p.Date.Equal(now))

	p, err = f.Coerce("2024-05-01T12:00:00Z")
	assert.NoError(t, err)
	assert.Equal(t, KindDate, p.Kind)

	_, err = f.Coerce("yesterday")
	assert.Error(t, err)
}

func TestField_CoerceList(t *testing.T) {
	f := &Field{Name: "tags", Type: FieldStaticList, RelationalStorage: true}

	p, err := f.Coerce([]string{"a", "b"})
	assert.NoError(t, err)
	assert.Equal(t, KindStringList, p.Kind)
	assert.True(t, p.Relational)

	p, err = f.Parse("a|b|c")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, p.List)
}

func TestField_Validation(t *testing.T) {
	f := &Field{Name: "code", Type: FieldString, Validation: `^[A-Z]{3}$`}

	_, err := f.Parse("ABC")
	assert.NoError(t, err)

	_, err = f.Parse("abc")
	assert.Error(t, err)
}

func TestField_Display(t *testing.T) {
	password := &Field{Name: "secret", Type: FieldPassword}
	boolean := &Field{Name: "active", Type: FieldBoolean}

	assert.Equal(t, "********", password.Display(StringProperty("hunter2"), DisplayView))
	assert.Equal(t, "hunter2", password.Display(StringProperty("hunter2"), DisplayEdit))
	assert.Equal(t, "", password.Display(StringProperty("hunter2"), DisplayHidden))
	assert.Equal(t, "true", boolean.Display(IntProperty(1), DisplayView))
	assert.Equal(t, "false", boolean.Display(IntProperty(0), DisplayView))
}

func TestFieldTypeFromName(t *testing.T) {
	ft, err := FieldTypeFromName("textarea")
	assert.NoError(t, err)
	assert.Equal(t, FieldTextArea, ft)

	_, err = FieldTypeFromName("hologram")
	assert.Error(t, err)
}
