package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/wikistore/internal/doc"
	"github.com/emrgen/wikistore/internal/tester"
)

func TestHeaderValueEncoding(t *testing.T) {
	cases := []string{
		"plain",
		`a "quoted" title`,
		"line one\nline two",
		"windows\r\nnewline",
		`both "quotes"` + "\nand newlines",
		"",
	}
	for _, in := range cases {
		encoded := encodeHeaderValue(in)
		assert.NotContains(t, encoded, "\n")
		assert.NotContains(t, encoded, `"`)
		want := strings.ReplaceAll(in, "\r\n", "\n")
		assert.Equal(t, want, decodeHeaderValue(encoded))
	}
}

func TestFileStore_DocumentFileLayout(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(tester.FileRoot(t.Name()), "", false)
	require.NoError(t, s.Migrate())

	key := doc.NewKey("wikifilelayout", "Main", "Page")
	d := doc.New(key)
	d.SetTitle(`a "quoted" title` + "\nwith a newline")
	d.SetContent("raw content\nkeeps its newlines\nverbatim")
	d.Author = "XWiki.Admin"
	require.NoError(t, s.SaveDocument(ctx, d))

	raw, err := os.ReadFile(s.docPath(key))
	require.NoError(t, err)
	text := string(raw)

	header, content, found := strings.Cut(text, "\n\n")
	require.True(t, found)
	assert.Contains(t, header, `wiki="wikifilelayout"`)
	assert.Contains(t, header, `name="Page"`)
	assert.Contains(t, header, `version="1.1"`)
	// header values never span lines or carry raw quotes
	assert.Contains(t, header, quoteToken)
	assert.Contains(t, header, newlineToken)
	// content after the separator is stored verbatim
	assert.Equal(t, "raw content\nkeeps its newlines\nverbatim", content)

	got, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `a "quoted" title`+"\nwith a newline", got.Title)
	assert.Equal(t, "raw content\nkeeps its newlines\nverbatim", got.Content)
}

func TestFileStore_TranslationFilenames(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(tester.FileRoot(t.Name()), "", false)
	require.NoError(t, s.Migrate())

	base := doc.NewKey("wikifilelang", "Main", "Page")
	fr := doc.Key{Wiki: "wikifilelang", Space: "Main", Name: "Page", Language: "fr"}

	d := doc.New(base)
	d.SetContent("english")
	require.NoError(t, s.SaveDocument(ctx, d))

	t2 := doc.New(fr)
	t2.SetContent("francais")
	require.NoError(t, s.SaveDocument(ctx, t2))

	assert.True(t, strings.HasSuffix(s.docPath(base), "Main/Page.txt"))
	assert.True(t, strings.HasSuffix(s.docPath(fr), "Main/Page.fr.txt"))

	_, err := os.Stat(s.docPath(base))
	require.NoError(t, err)
	_, err = os.Stat(s.docPath(fr))
	require.NoError(t, err)

	// the archive sits next to the document file
	_, err = os.Stat(s.docPath(base) + ".v")
	require.NoError(t, err)
}

func TestFileStore_DottedPageNames(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(tester.FileRoot(t.Name()), "", false)
	require.NoError(t, s.Migrate())

	dotted := doc.NewKey("wikifiledots", "Main", "Page.2")
	d := doc.New(dotted)
	d.SetContent("second edition")
	require.NoError(t, s.SaveDocument(ctx, d))

	fr := doc.Key{Wiki: "wikifiledots", Space: "Main", Name: "Page", Language: "fr"}
	t2 := doc.New(fr)
	t2.SetContent("francais")
	require.NoError(t, s.SaveDocument(ctx, t2))

	// only a language-shaped suffix splits off when walking the tree
	names, err := s.SearchDocumentNames(ctx, "wikifiledots", "", 0, 0)
	require.NoError(t, err)
	assert.Contains(t, names, "Main.Page.2")
	assert.Contains(t, names, "Main.Page")

	got, err := s.LoadDocument(ctx, dotted)
	require.NoError(t, err)
	assert.Equal(t, "second edition", got.Content)
}

func TestLanguageCodeShapes(t *testing.T) {
	assert.True(t, isLanguageCode("fr"))
	assert.True(t, isLanguageCode("deu"))
	assert.True(t, isLanguageCode("pt_BR"))
	assert.False(t, isLanguageCode("2"))
	assert.False(t, isLanguageCode("v2"))
	assert.False(t, isLanguageCode("FR"))
	assert.False(t, isLanguageCode("pt_br"))
	assert.False(t, isLanguageCode("final"))
	assert.False(t, isLanguageCode(""))
}

func TestFileStore_DatesSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(tester.FileRoot(t.Name()), "", false)
	require.NoError(t, s.Migrate())

	key := doc.NewKey("wikifiledates", "Main", "Dated")
	d := doc.New(key)
	d.SetContent("dated")
	require.NoError(t, s.SaveDocument(ctx, d))
	saved := d.Date

	got, err := s.LoadDocument(ctx, key)
	require.NoError(t, err)
	assert.WithinDuration(t, saved, got.Date, time.Millisecond)
	assert.WithinDuration(t, d.CreationDate, got.CreationDate, time.Millisecond)
}
