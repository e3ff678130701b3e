package book

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xchm/chm"
	"github.com/nguyengg/xchm/fingerprint"
	"github.com/nguyengg/xchm/internal/bookinfo"
	"github.com/nguyengg/xchm/internal/chmtest"
	"github.com/nguyengg/xchm/internal/extract"
	"github.com/nguyengg/xchm/internal/sitemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(tag uint16, payload string) []byte {
	b := binary.LittleEndian.AppendUint16(nil, tag)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(payload)))
	return append(b, payload...)
}

func testArchive(t *testing.T) string {
	t.Helper()

	system := bytes.Join([][]byte{
		{3, 0, 0, 0},
		record(4, "\x09\x04\x00\x00"),
		record(0, "Toc.hhc\x00"),
		record(1, "index.hhk\x00"),
		record(2, "html/index.html\x00"),
		record(3, "Test Book\x00"),
	}, nil)

	return chmtest.WriteFile(t, "book.chm", []chmtest.Object{
		{Path: "/"},
		{Path: "/#SYSTEM", Data: system},
		{Path: "/toc.hhc", Data: []byte(`<ul><li><object type="text/sitemap"><param name="Name" value="Home"><param name="Local" value="html/index.html"></object></ul>`)},
		{Path: "/index.hhk", Data: []byte(`<ul><li><object type="text/sitemap"><param name="Name" value="Page"><param name="Local" value="html/page.html"></object></ul>`)},
		{Path: "/html/"},
		{Path: "/html/index.html", Data: []byte("<html>home</html>"), Compressed: true},
		{Path: "/html/page.html;2", Data: []byte("<html>page</html>")},
		{Path: "::DataSpace/NameList", Data: []byte{0, 0}},
	})
}

type opener struct {
	calls int
}

func (o *opener) options(root string) func(*Options) {
	return func(opts *Options) {
		opts.Root = root
		opts.Logger = log.New(io.Discard, "", 0)
		opts.OpenArchive = func(name string) (Archive, error) {
			o.calls++
			return chm.Open(name)
		}
	}
}

func TestOpen(t *testing.T) {
	name, root := testArchive(t), t.TempDir()
	o := &opener{}

	fp, err := fingerprint.File(context.Background(), name, fingerprint.SHA256)
	require.NoError(t, err)

	b, err := Open(context.Background(), name, o.options(root))
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls)

	assert.Equal(t, name, b.SourcePath())
	assert.Equal(t, filepath.Join(root, fp), b.Dir())
	assert.Equal(t, "Test Book", b.Title())
	assert.Equal(t, "windows-1252", b.Encoding())
	assert.Equal(t, "/Toc.hhc", b.HHC())
	assert.Equal(t, "/index.hhk", b.HHK())
	assert.Equal(t, "/html/index.html", b.Home())
	assert.Equal(t, "Sans 12", b.VariableFont())
	assert.Equal(t, "Monospace 12", b.FixedFont())
	assert.Equal(t, []sitemap.Entry{{Name: "Home", Local: "html/index.html"}}, b.LinkTree())
	assert.Equal(t, []sitemap.Entry{{Name: "Page", Local: "html/page.html"}}, b.Index())
	assert.Equal(t, 0, b.Bookmarks().Len())

	assert.FileExists(t, filepath.Join(b.Dir(), MarkerName))
	assert.FileExists(t, filepath.Join(b.Dir(), bookinfo.FileName))
	assert.FileExists(t, filepath.Join(b.Dir(), "html", "page.html"))
	assert.NoFileExists(t, filepath.Join(b.Dir(), "DataSpace"))

	b.Bookmarks().Add("Start", "/html/index.html")
	b.SetVariableFont("Serif 14")
	b.Close()

	// the second open reuses the extraction directory.
	b, err = Open(context.Background(), name, o.options(root))
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls)
	assert.Equal(t, "Test Book", b.Title())
	assert.Equal(t, "windows-1252", b.Encoding())
	assert.Equal(t, "Serif 14", b.VariableFont())
	assert.Equal(t, 1, b.Bookmarks().Len())
	assert.Len(t, b.LinkTree(), 1)
}

func TestOpen_stale(t *testing.T) {
	name, root := testArchive(t), t.TempDir()
	o := &opener{}

	fp, err := fingerprint.File(context.Background(), name, fingerprint.SHA256)
	require.NoError(t, err)

	// an interrupted extraction without the completion marker.
	stale := filepath.Join(root, fp)
	require.NoError(t, os.MkdirAll(stale, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "junk"), []byte("junk"), 0644))

	b, err := Open(context.Background(), name, o.options(root))
	require.NoError(t, err)
	assert.Equal(t, 1, o.calls)
	assert.Equal(t, stale, b.Dir())
	assert.NoFileExists(t, filepath.Join(stale, "junk"))
	assert.FileExists(t, filepath.Join(stale, MarkerName))
	assert.Equal(t, "Test Book", b.Title())
}

func TestOpen_missingBookinfo(t *testing.T) {
	name, root := testArchive(t), t.TempDir()
	o := &opener{}

	b, err := Open(context.Background(), name, o.options(root))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(b.Dir(), bookinfo.FileName)))

	b, err = Open(context.Background(), name, o.options(root))
	require.NoError(t, err)
	assert.Equal(t, 2, o.calls)
	assert.Equal(t, "Test Book", b.Title())
	assert.Equal(t, "/html/index.html", b.Home())
}

func TestOpen_md5(t *testing.T) {
	name, root := testArchive(t), t.TempDir()
	o := &opener{}

	fp, err := fingerprint.File(context.Background(), name, fingerprint.MD5)
	require.NoError(t, err)

	b, err := Open(context.Background(), name, o.options(root), func(opts *Options) {
		opts.Fingerprint = fingerprint.MD5
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, fp), b.Dir())
	assert.Len(t, fp, 32)
}

type shortArchive struct {
	*chm.File
}

func (shortArchive) Retrieve(chm.UnitInfo, []byte, uint64) (int, error) {
	return 0, nil
}

func TestOpen_errors(t *testing.T) {
	dir := t.TempDir()
	notCHM := filepath.Join(dir, "not.chm")
	require.NoError(t, os.WriteFile(notCHM, bytes.Repeat([]byte("not a chm "), 20), 0644))

	tests := []struct {
		name    string
		path    string
		optFns  []func(*Options)
		wantErr []error
	}{
		{
			name:    "missing file",
			path:    filepath.Join(dir, "missing.chm"),
			wantErr: []error{ErrFingerprint, os.ErrNotExist},
		},
		{
			name:    "not chm",
			path:    notCHM,
			wantErr: []error{ErrArchiveOpen, chm.ErrNotCHM},
		},
		{
			name: "short read",
			path: testArchive(t),
			optFns: []func(*Options){func(opts *Options) {
				opts.OpenArchive = func(name string) (Archive, error) {
					f, err := chm.Open(name)
					return shortArchive{f}, err
				}
			}},
			wantErr: []error{ErrExtract, extract.ErrShortRead},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			_, err := Open(context.Background(), tt.path, append([]func(*Options){(&opener{}).options(root)}, tt.optFns...)...)
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}

			// nothing is ever left under its final name.
			entries, _ := (Shelf{Root: root}).List()
			assert.Empty(t, entries)
		})
	}
}

func TestBook_Open(t *testing.T) {
	b, err := Open(context.Background(), testArchive(t), (&opener{}).options(t.TempDir()))
	require.NoError(t, err)

	f, err := b.Open("/HTML/Index.html")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	_ = f.Close()
	assert.NoError(t, err)
	assert.Equal(t, "<html>home</html>", string(data))

	_, err = b.Open("/../../etc/passwd")
	assert.ErrorIs(t, err, extract.ErrUnsafePath)

	_, err = b.Open("/html/missing.html")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_sourcePath(t *testing.T) {
	root, name := t.TempDir(), testArchive(t)

	b, err := Open(context.Background(), name, (&opener{}).options(root), func(opts *Options) {
		opts.SourcePath = "s3://bucket/books/Test Book.chm.zip"
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/books/Test Book.chm.zip", b.SourcePath())
	b.Close()

	// without an explicit source, the opened name is reported.
	b, err = Open(context.Background(), name, (&opener{}).options(root))
	require.NoError(t, err)
	assert.Equal(t, name, b.SourcePath())
	b.Close()
}
