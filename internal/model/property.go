package model

import (
	"time"
)

// One table per property type. Which table a value lives in is decided by the
// declaring class field, so loads are class-driven and values from removed
// fields are simply never read.

type StringProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    string
}

func (StringProperty) TableName() string {
	return "property_strings"
}

// LargeStringProperty holds text-area content, kept apart from plain strings
// so the generic table stays narrow.
type LargeStringProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    string `gorm:"type:text"`
}

func (LargeStringProperty) TableName() string {
	return "property_largestrings"
}

type IntegerProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    int32
}

func (IntegerProperty) TableName() string {
	return "property_integers"
}

type LongProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    int64
}

func (LongProperty) TableName() string {
	return "property_longs"
}

type FloatProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    float32
}

func (FloatProperty) TableName() string {
	return "property_floats"
}

type DoubleProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    float64
}

func (DoubleProperty) TableName() string {
	return "property_doubles"
}

type DateProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Value    time.Time
}

func (DateProperty) TableName() string {
	return "property_dates"
}

// ListProperty stores one ordered row per list element. Both relational and
// flat lists persist here; the storage shape on load comes from the declaring
// field descriptor.
type ListProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Idx      int    `gorm:"primaryKey;autoIncrement:false"`
	Value    string
}

func (ListProperty) TableName() string {
	return "property_lists"
}

// DBListProperty stores database-backed list selections.
type DBListProperty struct {
	ObjectID string `gorm:"primaryKey;uuid;not null"`
	Name     string `gorm:"primaryKey;not null"`
	Idx      int    `gorm:"primaryKey;autoIncrement:false"`
	Value    string
}

func (DBListProperty) TableName() string {
	return "property_dblists"
}
