// Package link derives the outbound link set of a document from its rendered
// content and builds the edges persisted by the backlink index.
package link

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/emrgen/wikistore/internal/doc"
)

// ExtractTargets returns the distinct referenced page full names found in
// content. Partial references resolve against the document's own space, so
// "[B]" inside space "Test" yields "Test.B". Malformed and nested bracket
// sequences are skipped, and de-duplication is by resolved target, not by
// bracket text.
func ExtractTargets(content, space string) []string {
	targets := mapset.NewSet[string]()
	for i := 0; i < len(content); i++ {
		if content[i] != '[' {
			continue
		}
		// double bracket, skip the whole sequence
		if i+1 < len(content) && content[i+1] == '[' {
			i = skipBrackets(content, i)
			continue
		}
		end := strings.IndexByte(content[i+1:], ']')
		if end < 0 {
			break
		}
		inner := content[i+1 : i+1+end]
		i += end + 1
		if strings.ContainsAny(inner, "[") {
			continue
		}
		if target := resolve(inner, space); target != "" {
			targets.Add(target)
		}
	}
	sorted := targets.ToSlice()
	sort.Strings(sorted)
	return sorted
}

// skipBrackets advances past a run of nested/doubled brackets starting at i.
func skipBrackets(content string, i int) int {
	depth := 0
	for ; i < len(content); i++ {
		switch content[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth <= 0 {
				return i
			}
		}
	}
	return len(content)
}

// resolve turns bracket text into a page full name, honouring the alias forms
// "[text|target]" and "[text>target]". External references are not edges.
func resolve(inner, space string) string {
	ref := inner
	if i := strings.LastIndexAny(inner, "|>"); i >= 0 {
		ref = inner[i+1:]
	}
	// anchors and query parts do not change the target page
	if i := strings.IndexAny(ref, "#?"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "://") {
		return ""
	}
	refSpace, name := doc.ParseFullName(ref, space)
	refSpace = strings.TrimSpace(refSpace)
	name = strings.TrimSpace(name)
	if refSpace == "" || name == "" {
		return ""
	}
	return refSpace + "." + name
}

// Edges builds the persisted edge set for a document from its content.
func Edges(d *doc.Document) []doc.Link {
	targets := ExtractTargets(d.Content, d.Key.Space)
	edges := make([]doc.Link, 0, len(targets))
	for _, target := range targets {
		edges = append(edges, doc.Link{
			DocID:          d.Key.ID(),
			Target:         target,
			SourceFullName: d.Key.FullName(),
		})
	}
	return edges
}
