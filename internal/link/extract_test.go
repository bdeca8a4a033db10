package link

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emrgen/wikistore/internal/doc"
)

func TestExtractTargets_ResolvesAgainstSpace(t *testing.T) {
	targets := ExtractTargets("see [B] and [Other.C]", "Test")
	assert.Equal(t, []string{"Other.C", "Test.B"}, targets)
}

func TestExtractTargets_AliasForms(t *testing.T) {
	targets := ExtractTargets("[the b page|B] and [c page>Other.C]", "Test")
	assert.Equal(t, []string{"Other.C", "Test.B"}, targets)
}

func TestExtractTargets_AnchorsAndQueries(t *testing.T) {
	targets := ExtractTargets("[B#section] [C?view=raw]", "Test")
	assert.Equal(t, []string{"Test.B", "Test.C"}, targets)
}

func TestExtractTargets_SkipsExternal(t *testing.T) {
	targets := ExtractTargets("[http://example.com] [docs|https://example.com/docs] [B]", "Test")
	assert.Equal(t, []string{"Test.B"}, targets)
}

func TestExtractTargets_SkipsDoubleBrackets(t *testing.T) {
	targets := ExtractTargets("[[not a link]] but [B] is", "Test")
	assert.Equal(t, []string{"Test.B"}, targets)
}

func TestExtractTargets_Malformed(t *testing.T) {
	assert.Empty(t, ExtractTargets("[unclosed", "Test"))
	assert.Empty(t, ExtractTargets("[]", "Test"))
	assert.Empty(t, ExtractTargets("no links here", "Test"))
}

func TestExtractTargets_DeduplicatesByTarget(t *testing.T) {
	targets := ExtractTargets("[B] [Test.B] [b page|B]", "Test")
	assert.Equal(t, []string{"Test.B"}, targets)
}

func TestEdges(t *testing.T) {
	d := doc.New(doc.NewKey("xwiki", "Test", "A"))
	d.Content = "link to [B] and [C]"

	edges := Edges(d)
	assert.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, d.Key.ID(), e.DocID)
		assert.Equal(t, "Test.A", e.SourceFullName)
	}
	assert.Equal(t, "Test.B", edges[0].Target)
	assert.Equal(t, "Test.C", edges[1].Target)
}
