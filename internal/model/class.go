package model

// Class is one row per class definition, the ordered field descriptors
// serialized as JSON. The custom-mapping declaration rides inside the
// definition; mapped tables themselves are created by an explicit migration.
type Class struct {
	Wiki       string `gorm:"primaryKey;not null"`
	Name       string `gorm:"primaryKey;not null"`
	Definition string `gorm:"type:text;not null"`
}

func (Class) TableName() string {
	return "classes"
}
