package doc

// Link is one outbound edge of the link graph: a directed reference from a
// source document to a target page full name. The per-document edge set is
// replaced atomically on save.
type Link struct {
	DocID          int64  `json:"doc_id"`
	Target         string `json:"target"`
	SourceFullName string `json:"source_full_name"`
}
