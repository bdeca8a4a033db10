package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/wikistore/internal/cache"
	"github.com/emrgen/wikistore/internal/doc"
	"github.com/emrgen/wikistore/internal/tester"
)

func cachedStore(t *testing.T) *CachedStore {
	t.Helper()
	gs, err := NewGormStore(tester.TestDB(), "gzip", NewMappingRegistry(), false)
	require.NoError(t, err)
	return NewCachedStore(gs, cache.NewLRUDocumentCache(16, 64))
}

func TestCachedStore_LoadMarksSecondHit(t *testing.T) {
	ctx := context.Background()
	s := cachedStore(t)
	key := doc.NewKey("wikicachehit", "Main", "Page")

	d := doc.New(key)
	d.SetContent("cached content")
	require.NoError(t, s.SaveDocument(ctx, d))

	first, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "cached content", second.Content)
}

func TestCachedStore_HitsAreIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	s := cachedStore(t)
	key := doc.NewKey("wikicachecopy", "Main", "Page")

	d := doc.New(key)
	d.SetContent("original")
	require.NoError(t, s.SaveDocument(ctx, d))

	_, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)

	hit, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	hit.Content = "mutated by caller"

	again, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Content)
}

func TestCachedStore_SaveEvicts(t *testing.T) {
	ctx := context.Background()
	s := cachedStore(t)
	key := doc.NewKey("wikicacheevict", "Main", "Page")

	d := doc.New(key)
	d.SetContent("v1")
	require.NoError(t, s.SaveDocument(ctx, d))

	_, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)

	d.SetContent("v2")
	require.NoError(t, s.SaveDocument(ctx, d))

	got, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.FromCache)
	assert.Equal(t, "v2", got.Content)
}

func TestCachedStore_ExistsCache(t *testing.T) {
	ctx := context.Background()
	s := cachedStore(t)
	key := doc.NewKey("wikicacheexists", "Main", "Page")

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	d := doc.New(key)
	d.SetContent("now here")
	require.NoError(t, s.SaveDocument(ctx, d))

	// the save updates the exists partition, a stale miss is not served
	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteDocument(ctx, d))
	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCachedStore_AbsentLoadCachesOnlyExistence(t *testing.T) {
	ctx := context.Background()
	s := cachedStore(t)
	key := doc.NewKey("wikicacheabsent", "Main", "Missing")

	d, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.IsNew)

	// absent documents are never cached as documents
	again, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.True(t, again.IsNew)
	assert.False(t, again.FromCache)

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

// ambiguousStore commits writes and then reports a failure, the way a lost
// response after a commit looks to the caller.
type ambiguousStore struct {
	Store
}

func (s *ambiguousStore) SaveDocument(ctx context.Context, d *doc.Document) error {
	if err := s.Store.SaveDocument(ctx, d); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func (s *ambiguousStore) DeleteDocument(ctx context.Context, d *doc.Document) error {
	if err := s.Store.DeleteDocument(ctx, d); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func TestCachedStore_FailedSaveStillEvicts(t *testing.T) {
	ctx := context.Background()
	gs, err := NewGormStore(tester.TestDB(), "gzip", NewMappingRegistry(), false)
	require.NoError(t, err)
	s := NewCachedStore(&ambiguousStore{Store: gs}, cache.NewLRUDocumentCache(16, 64))
	key := doc.NewKey("wikicacheambig", "Main", "Page")

	d := doc.New(key)
	d.SetContent("v1")
	require.Error(t, s.SaveDocument(ctx, d))

	_, err = s.LoadDocument(ctx, key)
	require.NoError(t, err)

	d.SetContent("v2")
	require.Error(t, s.SaveDocument(ctx, d))

	// the commit went through, so the cache must not serve v1
	got, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.FromCache)
	assert.Equal(t, "v2", got.Content)
}

func TestCachedStore_FailedDeleteStillEvicts(t *testing.T) {
	ctx := context.Background()
	gs, err := NewGormStore(tester.TestDB(), "gzip", NewMappingRegistry(), false)
	require.NoError(t, err)
	s := NewCachedStore(&ambiguousStore{Store: gs}, cache.NewLRUDocumentCache(16, 64))
	key := doc.NewKey("wikicacheambigdel", "Main", "Page")

	d := doc.New(key)
	d.SetContent("doomed")
	require.Error(t, s.SaveDocument(ctx, d))
	_, err = s.LoadDocument(ctx, key)
	require.NoError(t, err)

	require.Error(t, s.DeleteDocument(ctx, d))

	got, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.FromCache)
	assert.True(t, got.IsNew)

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCachedStore_FlushWiki(t *testing.T) {
	ctx := context.Background()
	s := cachedStore(t)
	key := doc.NewKey("wikicacheflush", "Main", "Page")

	d := doc.New(key)
	d.SetContent("flush me")
	require.NoError(t, s.SaveDocument(ctx, d))
	_, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)

	require.NoError(t, s.FlushWiki(ctx, key.Wiki))

	got, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.FromCache)
}
