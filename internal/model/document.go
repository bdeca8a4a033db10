package model

import (
	"time"
)

// Document is one row per document in the documents table. The primary key is
// the numeric identity derived from the four-part document key.
type Document struct {
	ID              int64  `gorm:"primaryKey;autoIncrement:false"`
	Wiki            string `gorm:"not null;index:idx_documents_wiki"`
	Space           string `gorm:"not null;index:idx_documents_space"`
	Name            string `gorm:"not null"`
	Language        string `gorm:"not null;default:''"`
	DefaultLanguage string
	Title           string
	Parent          string
	Format          string
	Author          string
	ContentAuthor   string
	Creator         string
	Comment         string
	MinorEdit       bool
	Version         string `gorm:"not null"`
	Content         string `gorm:"not null"`
	CreationDate    time.Time
	Date            time.Time
	ContentDate     time.Time
}

func (Document) TableName() string {
	return "documents"
}
