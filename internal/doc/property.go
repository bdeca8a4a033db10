package doc

import (
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the stored representation of a property value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindDate
	KindStringList
)

var kindNames = map[Kind]string{
	KindString:     "string",
	KindInt:        "int",
	KindLong:       "long",
	KindFloat:      "float",
	KindDouble:     "double",
	KindDate:       "date",
	KindStringList: "list",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ListSeparator joins flat-stored list values into a single string.
const ListSeparator = "|"

// Property is a typed scalar or list value. Equality is type-exact: an int
// property holding 10 never equals a string property holding "10".
type Property struct {
	Kind       Kind      `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Number     int64     `json:"number,omitempty"`
	Real       float64   `json:"real,omitempty"`
	Date       time.Time `json:"date,omitempty"`
	List       []string  `json:"list,omitempty"`
	Relational bool      `json:"relational,omitempty"` // list stored as joined rows instead of a flat string
}

func StringProperty(v string) Property { return Property{Kind: KindString, Text: v} }

func IntProperty(v int32) Property { return Property{Kind: KindInt, Number: int64(v)} }

func LongProperty(v int64) Property { return Property{Kind: KindLong, Number: v} }

func FloatProperty(v float32) Property { return Property{Kind: KindFloat, Real: float64(v)} }

func DoubleProperty(v float64) Property { return Property{Kind: KindDouble, Real: v} }

func DateProperty(v time.Time) Property { return Property{Kind: KindDate, Date: v} }

// ListProperty keeps the ordered value list together with its storage shape.
// Relational and flat lists round-trip to the identical ordered values.
func ListProperty(values []string, relational bool) Property {
	return Property{Kind: KindStringList, List: append([]string(nil), values...), Relational: relational}
}

// Equal reports value equality; properties of different kinds are never equal.
func (p Property) Equal(o Property) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case KindString:
		return p.Text == o.Text
	case KindInt, KindLong:
		return p.Number == o.Number
	case KindFloat, KindDouble:
		return p.Real == o.Real
	case KindDate:
		return p.Date.Equal(o.Date)
	case KindStringList:
		if len(p.List) != len(o.List) {
			return false
		}
		for i := range p.List {
			if p.List[i] != o.List[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Value renders the property as its canonical text form, the representation
// written by the flat-file backend and the flat list storage shape.
func (p Property) Value() string {
	switch p.Kind {
	case KindString:
		return p.Text
	case KindInt, KindLong:
		return strconv.FormatInt(p.Number, 10)
	case KindFloat:
		return strconv.FormatFloat(p.Real, 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(p.Real, 'g', -1, 64)
	case KindDate:
		return p.Date.UTC().Format(time.RFC3339)
	case KindStringList:
		return strings.Join(p.List, ListSeparator)
	}
	return ""
}

// SplitList parses a flat list string back into ordered values.
func SplitList(flat string) []string {
	if flat == "" {
		return nil
	}
	return strings.Split(flat, ListSeparator)
}

func (p Property) Copy() Property {
	c := p
	if p.List != nil {
		c.List = append([]string(nil), p.List...)
	}
	return c
}
