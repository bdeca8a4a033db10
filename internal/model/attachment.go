package model

import "time"

// Attachment is the metadata row of one document attachment. The payload
// lives in attachment_contents so listings never drag blobs along.
type Attachment struct {
	ID       string `gorm:"primaryKey;uuid;not null"`
	DocID    int64  `gorm:"not null;index:idx_attachments_doc_id"`
	Filename string `gorm:"not null"`
	Version  string `gorm:"not null"`
	Author   string
	Comment  string
	Size     int64
	Date     time.Time
}

func (Attachment) TableName() string {
	return "attachments"
}

type AttachmentContent struct {
	AttachmentID string `gorm:"primaryKey;uuid;not null"`
	Codec        string `gorm:"not null;default:''"`
	Content      []byte
}

func (AttachmentContent) TableName() string {
	return "attachment_contents"
}

// AttachmentArchive holds the serialized revision chain of one attachment.
// Keyed by document and filename so the chain survives metadata row churn.
type AttachmentArchive struct {
	DocID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Filename string `gorm:"primaryKey"`
	Wiki     string `gorm:"not null;index:idx_attachment_archives_wiki"`
	Codec    string `gorm:"not null;default:''"`
	Blob     []byte
}

func (AttachmentArchive) TableName() string {
	return "attachment_archives"
}
