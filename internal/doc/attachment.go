package doc

import "time"

// Attachment is a named binary payload owned by a document. Content is loaded
// lazily by the storage backend.
type Attachment struct {
	Filename string    `json:"filename"`
	Author   string    `json:"author,omitempty"`
	Version  Version   `json:"version"`
	Comment  string    `json:"comment,omitempty"`
	Date     time.Time `json:"date"`
	Size     int64     `json:"size"`
	Content  []byte    `json:"-"`
}

func (a *Attachment) Copy() *Attachment {
	cp := *a
	if a.Content != nil {
		cp.Content = append([]byte(nil), a.Content...)
	}
	return &cp
}

// AttachmentRevision is one archived version of an attachment. Binary
// payloads do not diff usefully, so each revision keeps its full content.
type AttachmentRevision struct {
	Version Version   `json:"version"`
	Author  string    `json:"author,omitempty"`
	Comment string    `json:"comment,omitempty"`
	Date    time.Time `json:"date"`
	Size    int64     `json:"size"`
	Content []byte    `json:"content"`
}

// AppendAttachmentRevision records the attachment's current payload in its
// revision chain. Appending a version already present replaces that revision,
// so re-saving never records twice.
func AppendAttachmentRevision(chain []AttachmentRevision, att *Attachment) []AttachmentRevision {
	rev := AttachmentRevision{
		Version: att.Version,
		Author:  att.Author,
		Comment: att.Comment,
		Date:    att.Date,
		Size:    int64(len(att.Content)),
		Content: append([]byte(nil), att.Content...),
	}
	for i := range chain {
		if chain[i].Version == att.Version {
			chain[i] = rev
			return chain
		}
	}
	return append(chain, rev)
}
