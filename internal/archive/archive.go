// Package archive maintains the revision history of a document as a compact
// diff chain and materializes any past revision on demand.
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/emrgen/wikistore/internal/doc"
)

// checkpointInterval forces a full snapshot every N nodes so reconstruction
// never replays the whole chain.
const checkpointInterval = 64

// Node records one saved revision: metadata plus either a full snapshot or a
// patch against the previous revision's content. Snapshot discriminates the
// two; neither Full nor Patch can, since a snapshot of empty content and a
// patch between identical revisions both serialize to "".
type Node struct {
	Version  doc.Version `json:"version"`
	Author   string      `json:"author,omitempty"`
	Comment  string      `json:"comment,omitempty"`
	Date     time.Time   `json:"date"`
	Snapshot bool        `json:"snapshot,omitempty"`
	Full     string      `json:"full,omitempty"`
	Patch    string      `json:"patch,omitempty"`
}

// Archive is the ordered revision chain of one document. The first node is
// always a full snapshot.
type Archive struct {
	Key   doc.Key `json:"key"`
	Nodes []Node  `json:"nodes"`
}

func New(key doc.Key) *Archive {
	return &Archive{Key: key}
}

// Len returns the number of recorded revisions.
func (a *Archive) Len() int { return len(a.Nodes) }

// Versions lists every recorded revision identifier in order.
func (a *Archive) Versions() []doc.Version {
	vs := make([]doc.Version, 0, len(a.Nodes))
	for _, n := range a.Nodes {
		vs = append(vs, n.Version)
	}
	return vs
}

// Latest returns the newest node, or nil for an empty archive.
func (a *Archive) Latest() *Node {
	if len(a.Nodes) == 0 {
		return nil
	}
	return &a.Nodes[len(a.Nodes)-1]
}

// Update appends one node for the document's current revision. Calling it
// again for the same version is a no-op, so a save never records twice.
func (a *Archive) Update(d *doc.Document) error {
	if last := a.Latest(); last != nil {
		if last.Version == d.Version {
			return nil
		}
		if d.Version.Before(last.Version) {
			return fmt.Errorf("archive of %s already holds %s, cannot append %s",
				a.Key.FullName(), last.Version, d.Version)
		}
	}
	node := Node{
		Version: d.Version,
		Author:  d.Author,
		Comment: d.Comment,
		Date:    d.Date,
	}
	if len(a.Nodes) == 0 || len(a.Nodes)%checkpointInterval == 0 {
		node.Snapshot = true
		node.Full = d.Content
	} else {
		prev, err := a.content(len(a.Nodes) - 1)
		if err != nil {
			return err
		}
		dmp := diffmatchpatch.New()
		node.Patch = dmp.PatchToText(dmp.PatchMake(prev, d.Content))
	}
	a.Nodes = append(a.Nodes, node)
	return nil
}

// Revision materializes the content and metadata recorded for a version.
// Reconstruction is deterministic: the same archive always yields the same
// bytes.
func (a *Archive) Revision(v doc.Version) (string, *Node, error) {
	for i := range a.Nodes {
		if a.Nodes[i].Version == v {
			content, err := a.content(i)
			if err != nil {
				return "", nil, err
			}
			return content, &a.Nodes[i], nil
		}
	}
	return "", nil, fmt.Errorf("archive of %s has no revision %s", a.Key.FullName(), v)
}

// content replays the chain from the nearest snapshot up to node index i.
// An empty patch means the revision changed no content and applies nothing.
func (a *Archive) content(i int) (string, error) {
	start := i
	for start > 0 && !a.Nodes[start].Snapshot {
		start--
	}
	content := a.Nodes[start].Full
	dmp := diffmatchpatch.New()
	for j := start + 1; j <= i; j++ {
		if a.Nodes[j].Patch == "" {
			continue
		}
		patches, err := dmp.PatchFromText(a.Nodes[j].Patch)
		if err != nil {
			return "", fmt.Errorf("archive of %s: corrupt patch at revision %s: %w",
				a.Key.FullName(), a.Nodes[j].Version, err)
		}
		applied, results := dmp.PatchApply(patches, content)
		for _, ok := range results {
			if !ok {
				return "", fmt.Errorf("archive of %s: patch for revision %s did not apply",
					a.Key.FullName(), a.Nodes[j].Version)
			}
		}
		content = applied
	}
	return content, nil
}

// Diff returns a unified-style diff between two recorded revisions. Given the
// same pair it always produces the same text.
func (a *Archive) Diff(from, to doc.Version) (string, error) {
	oldContent, _, err := a.Revision(from)
	if err != nil {
		return "", err
	}
	newContent, _, err := a.Revision(to)
	if err != nil {
		return "", err
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs), nil
}

// Reset discards the history and reseeds it with the document's current state
// as the only revision. Administrative repair only.
func (a *Archive) Reset(d *doc.Document) {
	a.Nodes = []Node{{
		Version:  d.Version,
		Author:   d.Author,
		Comment:  d.Comment,
		Date:     d.Date,
		Snapshot: true,
		Full:     d.Content,
	}}
}

// Marshal serializes the archive for storage.
func (a *Archive) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// Unmarshal restores an archive produced by Marshal. Chains written before
// the Snapshot field existed are recognized by their non-empty Full content.
func Unmarshal(data []byte) (*Archive, error) {
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("corrupt archive: %w", err)
	}
	for i := range a.Nodes {
		if i == 0 || a.Nodes[i].Full != "" {
			a.Nodes[i].Snapshot = true
		}
	}
	return &a, nil
}
