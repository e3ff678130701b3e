package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xchm/internal/book"
	"github.com/nguyengg/xchm/internal/bookmarks"
	"github.com/nguyengg/xchm/internal/chmtest"
	"github.com/nguyengg/xchm/internal/sitemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTOC = `<html><body><ul>
<li><object type="text/sitemap"><param name="Name" value="Welcome"><param name="Local" value="index.html"></object>
</ul></body></html>`

// run parses and executes args against a fresh bookshelf root.
func run(t *testing.T, root string, args ...string) {
	t.Helper()

	p, err := NewParser()
	require.NoError(t, err)

	args = append([]string{"--config", filepath.Join(t.TempDir(), "missing.ini"), "--root", root}, args...)
	_, err = p.ParseArgs(args)
	require.NoErrorf(t, err, "ParseArgs(%v) error = %v", args, err)
}

func testBook(t *testing.T) string {
	return chmtest.WriteFile(t, "Test Book.chm", []chmtest.Object{
		{Path: "/"},
		{Path: "/#SYSTEM", Data: []byte{3, 0, 0, 0, 0, 0, 8, 0, 'T', 'o', 'c', '.', 'h', 'h', 'c', 0}},
		{Path: "/Toc.hhc", Data: []byte(testTOC)},
		{Path: "/index.html", Data: []byte("<html>hello</html>")},
	})
}

func TestOpen_extractsOnce(t *testing.T) {
	root, file := t.TempDir(), testBook(t)

	run(t, root, "open", "-q", "--variable-font", "Serif 10", file)
	run(t, root, "open", "-q", file)

	entries, err := book.Shelf{Root: root}.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Complete)

	data, err := os.ReadFile(filepath.Join(entries[0].Dir, "index.html"))
	assert.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", string(data))

	data, err = os.ReadFile(filepath.Join(entries[0].Dir, "bookinfo"))
	assert.NoError(t, err)
	assert.Contains(t, string(data), "Serif 10")

	toc, err := sitemap.Load(filepath.Join(entries[0].Dir, "Toc.hhc"), "UTF-8")
	assert.NoError(t, err)
	assert.Equal(t, []sitemap.Entry{{Name: "Welcome", Local: "index.html"}}, toc)
}

func TestBookmark(t *testing.T) {
	root, file := t.TempDir(), testBook(t)

	run(t, root, "bookmark", "add", file, "/index.html", "Start here")

	entries, err := book.Shelf{Root: root}.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	l, err := bookmarks.Load(entries[0].Dir)
	require.NoError(t, err)
	assert.Equal(t, []bookmarks.Bookmark{{Name: "Start here", Link: "/index.html"}}, l.Items())

	run(t, root, "bookmark", "list", file)
	run(t, root, "bookmark", "remove", file, "/index.html")

	l, err = bookmarks.Load(entries[0].Dir)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())

	p, err := NewParser()
	require.NoError(t, err)
	_, err = p.ParseArgs([]string{"--root", root, "bookmark", "add", file, "/missing.html"})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	root, file, out := t.TempDir(), testBook(t), t.TempDir()

	run(t, root, "export", "--format", "zip", "--output-dir", out, file)
	run(t, root, "export", "--format", "zip", "--output-dir", out, file)

	_, err := os.Stat(filepath.Join(out, "Test Book.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "Test Book-1.zip"))
	assert.NoError(t, err)
}

func TestShelf(t *testing.T) {
	root, file := t.TempDir(), testBook(t)

	run(t, root, "open", "-q", file)
	require.NoError(t, os.Mkdir(filepath.Join(root, ".abc.1234.partial"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "stale"), 0755))

	run(t, root, "shelf", "list")
	run(t, root, "shelf", "prune")

	entries, err := book.Shelf{Root: root}.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = os.Stat(filepath.Join(root, ".abc.1234.partial"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	run(t, root, "shelf", "remove", "--yes", entries[0].Fingerprint)

	entries, err = book.Shelf{Root: root}.List()
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteEntries(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "toc")
	require.NoError(t, err)

	writeEntries(f, []sitemap.Entry{
		{Name: "Chapter 1", Local: "ch1.html", Children: []sitemap.Entry{
			{Name: "Section 1.1", Local: "ch1.html#s1"},
		}},
		{Name: "Appendix"},
	}, 0)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1\tch1.html\n  Section 1.1\tch1.html#s1\nAppendix\n", string(data))
}
