package model

// Link is one outbound edge of the link graph. The edge set of a document is
// replaced wholesale inside the saving transaction, never patched.
type Link struct {
	DocID    int64  `gorm:"primaryKey;autoIncrement:false;index:idx_links_doc_id"`
	Target   string `gorm:"primaryKey;not null;index:idx_links_target"`
	Wiki     string `gorm:"not null;index:idx_links_wiki"`
	FullName string `gorm:"not null"` // source page full name
}

func (Link) TableName() string {
	return "links"
}
