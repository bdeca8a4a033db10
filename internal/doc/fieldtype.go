package doc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType is the declared type of a class field. Each type carries an
// explicit coerce/parse/render function table selected by the stored
// discriminator, not by runtime introspection.
type FieldType int

const (
	FieldString FieldType = iota
	FieldTextArea
	FieldPassword
	FieldNumber
	FieldBoolean
	FieldDate
	FieldStaticList
	FieldDBList
)

// NumberType selects the concrete representation of a number field.
const (
	NumberInteger = "integer"
	NumberLong    = "long"
	NumberFloat   = "float"
	NumberDouble  = "double"
)

// DisplayMode selects a rendering contract for a property value.
type DisplayMode int

const (
	DisplayView DisplayMode = iota
	DisplayEdit
	DisplayHidden
	DisplaySearch
)

type fieldHandler struct {
	name string
	// parse converts the canonical text form into a typed property.
	parse func(f *Field, text string) (Property, error)
	// coerce validates and converts an arbitrary value into a typed property.
	coerce func(f *Field, v any) (Property, error)
	// view renders the stored property for display.
	view func(f *Field, p Property) string
}

var fieldHandlers = map[FieldType]fieldHandler{
	FieldString:     {name: "string", parse: parseString, coerce: coerceString, view: viewValue},
	FieldTextArea:   {name: "textarea", parse: parseString, coerce: coerceString, view: viewValue},
	FieldPassword:   {name: "password", parse: parseString, coerce: coerceString, view: viewPassword},
	FieldNumber:     {name: "number", parse: parseNumber, coerce: coerceNumber, view: viewValue},
	FieldBoolean:    {name: "boolean", parse: parseBoolean, coerce: coerceBoolean, view: viewBoolean},
	FieldDate:       {name: "date", parse: parseDate, coerce: coerceDate, view: viewValue},
	FieldStaticList: {name: "staticlist", parse: parseList, coerce: coerceList, view: viewValue},
	FieldDBList:     {name: "dblist", parse: parseList, coerce: coerceList, view: viewValue},
}

func (t FieldType) String() string {
	if h, ok := fieldHandlers[t]; ok {
		return h.name
	}
	return "unknown"
}

// FieldTypeFromName resolves the stored discriminator back to a field type.
func FieldTypeFromName(name string) (FieldType, error) {
	for t, h := range fieldHandlers {
		if h.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", name)
}

func parseString(f *Field, text string) (Property, error) {
	if err := f.checkValidation(text); err != nil {
		return Property{}, err
	}
	return StringProperty(text), nil
}

func coerceString(f *Field, v any) (Property, error) {
	s, ok := v.(string)
	if !ok {
		return Property{}, fmt.Errorf("field %s expects a string, got %T", f.Name, v)
	}
	return parseString(f, s)
}

func parseNumber(f *Field, text string) (Property, error) {
	switch f.NumberType {
	case NumberLong:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Property{}, fmt.Errorf("field %s: invalid long %q", f.Name, text)
		}
		return LongProperty(n), nil
	case NumberFloat:
		n, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Property{}, fmt.Errorf("field %s: invalid float %q", f.Name, text)
		}
		return FloatProperty(float32(n)), nil
	case NumberDouble:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Property{}, fmt.Errorf("field %s: invalid double %q", f.Name, text)
		}
		return DoubleProperty(n), nil
	default:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Property{}, fmt.Errorf("field %s: invalid integer %q", f.Name, text)
		}
		return IntProperty(int32(n)), nil
	}
}

func coerceNumber(f *Field, v any) (Property, error) {
	switch n := v.(type) {
	case int:
		return parseNumber(f, strconv.Itoa(n))
	case int32:
		return parseNumber(f, strconv.FormatInt(int64(n), 10))
	case int64:
		return parseNumber(f, strconv.FormatInt(n, 10))
	case float32:
		return parseNumber(f, strconv.FormatFloat(float64(n), 'g', -1, 32))
	case float64:
		return parseNumber(f, strconv.FormatFloat(n, 'g', -1, 64))
	case string:
		return parseNumber(f, n)
	default:
		return Property{}, fmt.Errorf("field %s expects a number, got %T", f.Name, v)
	}
}

func parseBoolean(f *Field, text string) (Property, error) {
	switch strings.ToLower(text) {
	case "1", "true", "yes":
		return IntProperty(1), nil
	case "0", "false", "no", "":
		return IntProperty(0), nil
	}
	return Property{}, fmt.Errorf("field %s: invalid boolean %q", f.Name, text)
}

func coerceBoolean(f *Field, v any) (Property, error) {
	switch b := v.(type) {
	case bool:
		if b {
			return IntProperty(1), nil
		}
		return IntProperty(0), nil
	case string:
		return parseBoolean(f, b)
	case int:
		return parseBoolean(f, strconv.Itoa(b))
	default:
		return Property{}, fmt.Errorf("field %s expects a boolean, got %T", f.Name, v)
	}
}

func parseDate(f *Field, text string) (Property, error) {
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return Property{}, fmt.Errorf("field %s: invalid date %q", f.Name, text)
	}
	return DateProperty(t), nil
}

func coerceDate(f *Field, v any) (Property, error) {
	switch d := v.(type) {
	case time.Time:
		return DateProperty(d), nil
	case string:
		return parseDate(f, d)
	default:
		return Property{}, fmt.Errorf("field %s expects a date, got %T", f.Name, v)
	}
}

func parseList(f *Field, text string) (Property, error) {
	return ListProperty(SplitList(text), f.RelationalStorage), nil
}

func coerceList(f *Field, v any) (Property, error) {
	switch l := v.(type) {
	case []string:
		return ListProperty(l, f.RelationalStorage), nil
	case string:
		return parseList(f, l)
	default:
		return Property{}, fmt.Errorf("field %s expects a list, got %T", f.Name, v)
	}
}

func viewValue(f *Field, p Property) string { return p.Value() }

func viewPassword(f *Field, p Property) string { return "********" }

func viewBoolean(f *Field, p Property) string {
	if p.Number != 0 {
		return "true"
	}
	return "false"
}
