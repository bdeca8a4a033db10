package model

// Archive holds the serialized revision chain of a document, compressed with
// the configured codec. Loaded lazily because it can be large.
type Archive struct {
	DocID int64  `gorm:"primaryKey;autoIncrement:false"`
	Wiki  string `gorm:"not null;index:idx_archives_wiki"`
	Codec string `gorm:"not null;default:''"`
	Blob  []byte `gorm:"not null"`
}

func (Archive) TableName() string {
	return "archives"
}
