package model

// Object is one row per object instance, joined to its document by doc id and
// addressed inside it by (class name, number).
type Object struct {
	ID        string `gorm:"primaryKey;uuid;not null"`
	DocID     int64  `gorm:"not null;index:idx_objects_doc_id"`
	Wiki      string `gorm:"not null"`
	ClassName string `gorm:"not null;index:idx_objects_class_name"`
	Number    int    `gorm:"not null"`
}

func (Object) TableName() string {
	return "objects"
}
