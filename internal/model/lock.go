package model

import "time"

// Lock is an advisory editing lock row. Informational only; expiry is swept
// by a background job, not enforced by the schema.
type Lock struct {
	DocID int64     `gorm:"primaryKey;autoIncrement:false"`
	Wiki  string    `gorm:"not null;index:idx_locks_wiki"`
	Owner string    `gorm:"not null"`
	Token string    `gorm:"uuid"`
	Date  time.Time `gorm:"not null"`
}

func (Lock) TableName() string {
	return "locks"
}
