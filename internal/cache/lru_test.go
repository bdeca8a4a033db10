package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/wikistore/internal/doc"
)

func TestLRUDocumentCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewLRUDocumentCache(8, 8)
	key := doc.NewKey("xwiki", "Main", "Page")

	_, ok := c.GetDocument(ctx, key)
	assert.False(t, ok)

	d := doc.New(key)
	d.SetContent("cached")
	require.NoError(t, c.SetDocument(ctx, d))

	got, ok := c.GetDocument(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "cached", got.Content)

	require.NoError(t, c.DeleteDocument(ctx, key))
	_, ok = c.GetDocument(ctx, key)
	assert.False(t, ok)
}

func TestLRUDocumentCache_ExistsTracksAbsence(t *testing.T) {
	ctx := context.Background()
	c := NewLRUDocumentCache(8, 8)
	key := doc.NewKey("xwiki", "Main", "Missing")

	_, known := c.GetExists(ctx, key)
	assert.False(t, known)

	require.NoError(t, c.SetExists(ctx, key, false))
	exists, known := c.GetExists(ctx, key)
	require.True(t, known)
	assert.False(t, exists)

	require.NoError(t, c.SetExists(ctx, key, true))
	exists, known = c.GetExists(ctx, key)
	require.True(t, known)
	assert.True(t, exists)
}

func TestLRUDocumentCache_WikiPartitionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := NewLRUDocumentCache(8, 8)

	a := doc.New(doc.NewKey("alpha", "Main", "Page"))
	a.SetContent("alpha content")
	b := doc.New(doc.NewKey("beta", "Main", "Page"))
	b.SetContent("beta content")
	require.NoError(t, c.SetDocument(ctx, a))
	require.NoError(t, c.SetDocument(ctx, b))

	require.NoError(t, c.FlushWiki(ctx, "alpha"))

	_, ok := c.GetDocument(ctx, a.Key)
	assert.False(t, ok)
	got, ok := c.GetDocument(ctx, b.Key)
	require.True(t, ok)
	assert.Equal(t, "beta content", got.Content)
}

func TestLRUDocumentCache_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := NewLRUDocumentCache(2, 2)

	keys := make([]doc.Key, 3)
	for i := range keys {
		keys[i] = doc.NewKey("xwiki", "Main", fmt.Sprintf("Page%d", i))
		d := doc.New(keys[i])
		d.SetContent("content")
		require.NoError(t, c.SetDocument(ctx, d))
	}

	_, ok := c.GetDocument(ctx, keys[0])
	assert.False(t, ok)
	_, ok = c.GetDocument(ctx, keys[2])
	assert.True(t, ok)
}

func TestLRUDocumentCache_Flush(t *testing.T) {
	ctx := context.Background()
	c := NewLRUDocumentCache(8, 8)

	for _, wiki := range []string{"alpha", "beta"} {
		d := doc.New(doc.NewKey(wiki, "Main", "Page"))
		d.SetContent("content")
		require.NoError(t, c.SetDocument(ctx, d))
	}

	require.NoError(t, c.Flush(ctx))

	_, ok := c.GetDocument(ctx, doc.NewKey("alpha", "Main", "Page"))
	assert.False(t, ok)
	_, ok = c.GetDocument(ctx, doc.NewKey("beta", "Main", "Page"))
	assert.False(t, ok)
}
