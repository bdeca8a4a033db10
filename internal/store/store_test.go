package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/wikistore/internal/doc"
	"github.com/emrgen/wikistore/internal/tester"
)

// testStores builds one instance of every backend. The contract below holds
// for all of them.
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	gs, err := NewGormStore(tester.TestDB(), "gzip", NewMappingRegistry(), true)
	require.NoError(t, err)

	fs := NewFileStore(tester.FileRoot(t.Name()), "", true)
	require.NoError(t, fs.Migrate())

	bs, err := NewBoltStore(tester.BoltPath(t.Name()), true)
	require.NoError(t, err)
	require.NoError(t, bs.Migrate())
	t.Cleanup(func() { _ = bs.Close() })

	return map[string]Store{"gorm": gs, "file": fs, "bolt": bs}
}

// each test works in its own wiki so backends sharing a database stay isolated
func testWiki(name string) string {
	return "wiki" + name
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("roundtrip" + name)
			key := doc.NewKey(wiki, "Main", "WebHome")

			cls := doc.NewClass(key.FullName())
			require.NoError(t, cls.AddField(&doc.Field{Name: "title", Type: doc.FieldString}))
			require.NoError(t, cls.AddField(&doc.Field{Name: "count", Type: doc.FieldNumber, NumberType: doc.NumberInteger}))
			require.NoError(t, cls.AddField(&doc.Field{Name: "tags", Type: doc.FieldStaticList, RelationalStorage: true}))

			d := doc.New(key)
			d.SetTitle("Home")
			d.SetContent("welcome to the wiki")
			d.SetParent("Main.WebPreferences")
			d.DefaultLanguage = "en"
			d.Author = "XWiki.Admin"
			d.Class = cls

			obj := cls.NewObject()
			require.NoError(t, obj.Set(cls, "title", "hello"))
			require.NoError(t, obj.Set(cls, "count", 3))
			require.NoError(t, obj.Set(cls, "tags", []string{"go", "wiki"}))
			d.AddObject(obj)

			require.NoError(t, s.SaveDocument(ctx, d))
			assert.Equal(t, "1.1", d.Version.String())
			assert.False(t, d.IsNew)

			got, err := s.LoadDocument(ctx, key)
			require.NoError(t, err)
			assert.False(t, got.IsNew)
			assert.Equal(t, "Home", got.Title)
			assert.Equal(t, "welcome to the wiki", got.Content)
			assert.Equal(t, "1.1", got.Version.String())
			assert.Equal(t, "XWiki.Admin", got.Author)
			assert.Equal(t, "Main.WebPreferences", got.Parent)
			assert.Equal(t, "en", got.DefaultLanguage)

			require.NotNil(t, got.Class)
			assert.Equal(t, key.FullName(), got.Class.Name)
			assert.Equal(t, []string{"title", "count", "tags"}, got.Class.FieldNames())

			loaded := got.Object(key.FullName())
			require.NotNil(t, loaded)
			title, ok := loaded.Get("title")
			require.True(t, ok)
			assert.True(t, title.Equal(doc.StringProperty("hello")))
			count, ok := loaded.Get("count")
			require.True(t, ok)
			assert.True(t, count.Equal(doc.IntProperty(3)))
			tags, ok := loaded.Get("tags")
			require.True(t, ok)
			assert.Equal(t, []string{"go", "wiki"}, tags.List)

			exists, err := s.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestStore_LoadAbsentReturnsNewMarker(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("absent"+name), "Main", "Nowhere")

			d, err := s.LoadDocument(ctx, key)
			require.NoError(t, err)
			assert.True(t, d.IsNew)
			assert.Equal(t, key, d.Key)
			assert.Equal(t, "1.0", d.Version.String())

			exists, err := s.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStore_VersioningAndRevisions(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("versions"+name), "Main", "Page")

			d := doc.New(key)
			d.SetContent("first")
			d.Author = "XWiki.Admin"
			require.NoError(t, s.SaveDocument(ctx, d))
			assert.Equal(t, "1.1", d.Version.String())

			d.MinorEdit = true
			d.SetContent("second")
			require.NoError(t, s.SaveDocument(ctx, d))
			assert.Equal(t, "1.2", d.Version.String())

			d.MinorEdit = false
			d.SetContent("third")
			require.NoError(t, s.SaveDocument(ctx, d))
			assert.Equal(t, "2.1", d.Version.String())

			// saving a clean document does not advance the version
			require.NoError(t, s.SaveDocument(ctx, d))
			assert.Equal(t, "2.1", d.Version.String())

			ar, err := s.LoadArchive(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 3, ar.Len())

			rev, err := s.LoadDocumentRevision(ctx, key, doc.Version{Major: 1, Minor: 1})
			require.NoError(t, err)
			assert.Equal(t, "first", rev.Content)
			assert.Equal(t, "1.1", rev.Version.String())

			rev, err = s.LoadDocumentRevision(ctx, key, doc.Version{Major: 1, Minor: 2})
			require.NoError(t, err)
			assert.Equal(t, "second", rev.Content)

			_, err = s.LoadDocumentRevision(ctx, key, doc.Version{Major: 7, Minor: 7})
			assert.Error(t, err)
		})
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("delete"+name), "Main", "Doomed")

			d := doc.New(key)
			d.SetContent("short lived [Target]")
			require.NoError(t, s.SaveDocument(ctx, d))

			require.NoError(t, s.DeleteDocument(ctx, d))
			assert.True(t, d.IsNew)

			got, err := s.LoadDocument(ctx, key)
			require.NoError(t, err)
			assert.True(t, got.IsNew)

			exists, err := s.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, exists)

			links, err := s.LoadLinks(ctx, key.ID())
			require.NoError(t, err)
			assert.Empty(t, links)

			ar, err := s.LoadArchive(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 0, ar.Len())
		})
	}
}

func TestStore_LinksAndBacklinks(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("links" + name)
			key := doc.NewKey(wiki, "Test", "A")

			d := doc.New(key)
			d.SetContent("see [B] and [C]")
			require.NoError(t, s.SaveDocument(ctx, d))

			links, err := s.LoadLinks(ctx, key.ID())
			require.NoError(t, err)
			require.Len(t, links, 2)
			assert.Equal(t, "Test.B", links[0].Target)
			assert.Equal(t, "Test.C", links[1].Target)

			back, err := s.LoadBacklinks(ctx, wiki, "Test.B")
			require.NoError(t, err)
			assert.Equal(t, []string{"Test.A"}, back)

			// saving replaces the whole edge set
			d.SetContent("only [C] now")
			require.NoError(t, s.SaveDocument(ctx, d))

			back, err = s.LoadBacklinks(ctx, wiki, "Test.B")
			require.NoError(t, err)
			assert.Empty(t, back)

			back, err = s.LoadBacklinks(ctx, wiki, "Test.C")
			require.NoError(t, err)
			assert.Equal(t, []string{"Test.A"}, back)
		})
	}
}

func TestStore_Locks(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("locks" + name)
			key := doc.NewKey(wiki, "Main", "Locked")

			lock := &doc.Lock{DocID: key.ID(), Owner: "XWiki.Admin"}
			require.NoError(t, s.SaveLock(ctx, wiki, lock))
			assert.NotEmpty(t, lock.Token)

			got, err := s.LoadLock(ctx, key.ID())
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "XWiki.Admin", got.Owner)
			assert.Equal(t, lock.Token, got.Token)

			require.NoError(t, s.DeleteLock(ctx, lock))
			got, err = s.LoadLock(ctx, key.ID())
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_ExpireLocks(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("expire" + name)

			stale := &doc.Lock{DocID: doc.NewKey(wiki, "Main", "Old").ID(), Owner: "XWiki.Admin", Date: time.Now().Add(-2 * time.Hour)}
			fresh := &doc.Lock{DocID: doc.NewKey(wiki, "Main", "New").ID(), Owner: "XWiki.Admin", Date: time.Now()}
			require.NoError(t, s.SaveLock(ctx, wiki, stale))
			require.NoError(t, s.SaveLock(ctx, wiki, fresh))

			expired, err := s.ExpireLocks(ctx, wiki, time.Now().Add(-time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, expired)

			got, err := s.LoadLock(ctx, stale.DocID)
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = s.LoadLock(ctx, fresh.DocID)
			require.NoError(t, err)
			assert.NotNil(t, got)
		})
	}
}

func TestStore_Attachments(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("attach"+name), "Main", "WithFiles")

			d := doc.New(key)
			d.SetContent("has attachments")
			d.AddAttachment(&doc.Attachment{
				Filename: "logo.png",
				Author:   "XWiki.Admin",
				Content:  []byte("png bytes"),
			})
			require.NoError(t, s.SaveDocument(ctx, d))

			got, err := s.LoadDocument(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, got.Attachment("logo.png"))
			assert.Equal(t, "1.1", got.Attachment("logo.png").Version.String())

			content, err := s.LoadAttachmentContent(ctx, got, "logo.png")
			require.NoError(t, err)
			assert.Equal(t, []byte("png bytes"), content)

			require.NoError(t, s.DeleteAttachment(ctx, got, "logo.png"))
			assert.Nil(t, got.Attachment("logo.png"))

			_, err = s.LoadAttachmentContent(ctx, got, "logo.png")
			assert.Error(t, err)
		})
	}
}

func TestStore_AttachmentArchive(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("attachhist"+name), "Main", "WithHistory")

			d := doc.New(key)
			d.SetContent("attachment history")
			d.AddAttachment(&doc.Attachment{
				Filename: "report.pdf",
				Author:   "XWiki.Admin",
				Content:  []byte("first draft"),
			})
			require.NoError(t, s.SaveDocument(ctx, d))

			// replacing the attachment bumps its version and archives both
			d.SetContent("attachment history, updated")
			d.AddAttachment(&doc.Attachment{
				Filename: "report.pdf",
				Author:   "XWiki.Admin",
				Content:  []byte("second draft"),
			})
			require.NoError(t, s.SaveDocument(ctx, d))

			chain, err := s.LoadAttachmentArchive(ctx, d, "report.pdf")
			require.NoError(t, err)
			require.Len(t, chain, 2)
			assert.Equal(t, "1.1", chain[0].Version.String())
			assert.Equal(t, []byte("first draft"), chain[0].Content)
			assert.Equal(t, "1.2", chain[1].Version.String())
			assert.Equal(t, []byte("second draft"), chain[1].Content)

			// the live payload is the newest revision
			content, err := s.LoadAttachmentContent(ctx, d, "report.pdf")
			require.NoError(t, err)
			assert.Equal(t, []byte("second draft"), content)

			// re-saving the same version does not grow the chain
			require.NoError(t, s.SaveAttachmentArchive(ctx, d, d.Attachment("report.pdf")))
			chain, err = s.LoadAttachmentArchive(ctx, d, "report.pdf")
			require.NoError(t, err)
			assert.Len(t, chain, 2)

			require.NoError(t, s.DeleteAttachment(ctx, d, "report.pdf"))
			chain, err = s.LoadAttachmentArchive(ctx, d, "report.pdf")
			require.NoError(t, err)
			assert.Empty(t, chain)
		})
	}
}

func TestStore_DeleteAttachmentArchiveKeepsPayload(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("attachhistdel"+name), "Main", "Pruned")

			d := doc.New(key)
			d.SetContent("prunable history")
			d.AddAttachment(&doc.Attachment{Filename: "data.bin", Content: []byte("payload")})
			require.NoError(t, s.SaveDocument(ctx, d))

			require.NoError(t, s.DeleteAttachmentArchive(ctx, d, "data.bin"))

			chain, err := s.LoadAttachmentArchive(ctx, d, "data.bin")
			require.NoError(t, err)
			assert.Empty(t, chain)

			content, err := s.LoadAttachmentContent(ctx, d, "data.bin")
			require.NoError(t, err)
			assert.Equal(t, []byte("payload"), content)
		})
	}
}

func TestStore_ListClasses(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("classes" + name)

			for _, page := range []string{"TagClass", "UserClass"} {
				key := doc.NewKey(wiki, "XWiki", page)
				d := doc.New(key)
				d.SetContent("class holder")
				cls := doc.NewClass(key.FullName())
				require.NoError(t, cls.AddField(&doc.Field{Name: "value", Type: doc.FieldString}))
				d.Class = cls
				require.NoError(t, s.SaveDocument(ctx, d))
			}

			names, err := s.ListClasses(ctx, wiki)
			require.NoError(t, err)
			assert.Equal(t, []string{"XWiki.TagClass", "XWiki.UserClass"}, names)
		})
	}
}

func TestStore_SearchDocumentNames(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("names" + name)

			for _, page := range []string{"Alpha", "Beta", "Gamma"} {
				d := doc.New(doc.NewKey(wiki, "Main", page))
				d.SetContent("content of " + page)
				require.NoError(t, s.SaveDocument(ctx, d))
			}

			names, err := s.SearchDocumentNames(ctx, wiki, "", 0, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"Main.Alpha", "Main.Beta", "Main.Gamma"}, names)

			names, err = s.SearchDocumentNames(ctx, wiki, "", 2, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"Main.Beta", "Main.Gamma"}, names)
		})
	}
}

func TestStore_TranslationsAreDistinct(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			wiki := testWiki("lang" + name)
			base := doc.NewKey(wiki, "Main", "Page")
			translated := doc.Key{Wiki: wiki, Space: "Main", Name: "Page", Language: "fr"}

			d := doc.New(base)
			d.SetContent("english")
			require.NoError(t, s.SaveDocument(ctx, d))

			fr := doc.New(translated)
			fr.SetContent("francais")
			require.NoError(t, s.SaveDocument(ctx, fr))

			got, err := s.LoadDocument(ctx, base)
			require.NoError(t, err)
			assert.Equal(t, "english", got.Content)

			got, err = s.LoadDocument(ctx, translated)
			require.NoError(t, err)
			assert.Equal(t, "francais", got.Content)
		})
	}
}

func TestStore_TransactionRollback(t *testing.T) {
	stores := testStores(t)
	// the file backend has no rollback, transactions are best effort there
	for _, name := range []string{"gorm", "bolt"} {
		s := stores[name]
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := doc.NewKey(testWiki("tx"+name), "Main", "Rolled")

			err := s.Transaction(ctx, func(tx Store) error {
				d := doc.New(key)
				d.SetContent("inside tx")
				if err := tx.SaveDocument(ctx, d); err != nil {
					return err
				}
				return errors.New("boom")
			})
			assert.Error(t, err)

			got, err := s.LoadDocument(ctx, key)
			require.NoError(t, err)
			assert.True(t, got.IsNew)
		})
	}
}

func TestGormStore_Search(t *testing.T) {
	ctx := context.Background()
	s, err := NewGormStore(tester.TestDB(), "none", NewMappingRegistry(), false)
	require.NoError(t, err)

	wiki := testWiki("search")
	for i := 1; i <= 3; i++ {
		d := doc.New(doc.NewKey(wiki, "Main", fmt.Sprintf("Doc%d", i)))
		d.SetContent("searchable")
		require.NoError(t, s.SaveDocument(ctx, d))
	}

	rows, err := s.Search(ctx, "SELECT space, name FROM documents WHERE wiki = ? ORDER BY name", 2, 0, wiki)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)

	_, err = s.Search(ctx, "SELECT FROM nowhere", 0, 0)
	assert.Error(t, err)
	assert.Equal(t, CodeSearch, ErrorCode(err))
}

func TestFileStore_SearchUnsupported(t *testing.T) {
	fs := NewFileStore(tester.FileRoot(t.Name()), "", false)
	require.NoError(t, fs.Migrate())

	_, err := fs.Search(context.Background(), "SELECT 1", 0, 0)
	assert.Error(t, err)
	assert.Equal(t, CodeUnsupported, ErrorCode(err))
}
