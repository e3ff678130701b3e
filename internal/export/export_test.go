package export

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/nguyengg/xchm/internal/book"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func testDir(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "0123abcd")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "html", "empty"), 0755))
	for name, data := range map[string]string{
		"bookinfo":                "title = Test\n",
		"html/index.html":         "<html>home</html>",
		"toc.hhc":                 "<ul></ul>",
		book.MarkerName:           "2024-01-01T00:00:00Z\n",
		"html/" + book.MarkerName: "not the marker",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(data), 0644))
	}

	return dir
}

func readTar(t *testing.T, r io.Reader) map[string]string {
	t.Helper()

	got := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return got
		}
		require.NoError(t, err)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		got[hdr.Name] = string(data)
	}
}

func readZip(t *testing.T, b []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)

	got := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		require.NoError(t, err)
		got[f.Name] = string(data)
	}

	return got
}

func TestExport(t *testing.T) {
	want := map[string]string{
		"My Book/bookinfo":                "title = Test\n",
		"My Book/html/index.html":         "<html>home</html>",
		"My Book/html/" + book.MarkerName: "not the marker",
		"My Book/toc.hhc":                 "<ul></ul>",
	}

	tests := []struct {
		format Format
		read   func(t *testing.T, b []byte) map[string]string
	}{
		{
			format: FormatZstd,
			read: func(t *testing.T, b []byte) map[string]string {
				zr, err := zstd.NewReader(bytes.NewReader(b))
				require.NoError(t, err)
				defer zr.Close()
				return readTar(t, zr)
			},
		},
		{
			format: FormatGzip,
			read: func(t *testing.T, b []byte) map[string]string {
				gr, err := gzip.NewReader(bytes.NewReader(b))
				require.NoError(t, err)
				return readTar(t, gr)
			},
		},
		{
			format: FormatXz,
			read: func(t *testing.T, b []byte) map[string]string {
				xr, err := xz.NewReader(bytes.NewReader(b))
				require.NoError(t, err)
				return readTar(t, xr)
			},
		},
		{
			format: FormatZip,
			read:   readZip,
		},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			err := Export(context.Background(), testDir(t), &buf, func(opts *Options) {
				opts.Format = tt.format
				opts.Prefix = "My Book"
				opts.Logger = log.New(io.Discard, "", 0)
			})
			require.NoError(t, err)
			assert.Equal(t, want, tt.read(t, buf.Bytes()))
		})
	}
}

func TestExport_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Export(ctx, testDir(t), io.Discard, func(opts *Options) {
		opts.Logger = log.New(io.Discard, "", 0)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportFile(t *testing.T) {
	dir, parent := testDir(t), t.TempDir()
	quiet := func(opts *Options) {
		opts.Format = FormatZip
		opts.Logger = log.New(io.Discard, "", 0)
	}

	name, err := ExportFile(context.Background(), dir, parent, "book", quiet)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "book.zip"), name)

	name, err = ExportFile(context.Background(), dir, parent, "book", quiet)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "book-1.zip"), name)

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, readZip(t, b), "0123abcd/html/index.html")

	// a failed export leaves nothing behind.
	_, err = ExportFile(context.Background(), filepath.Join(dir, "missing"), parent, "broken", quiet)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(parent, "broken.zip"))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		v       string
		want    Format
		wantErr bool
	}{
		{v: "zstd", want: FormatZstd},
		{v: ".tar.zst", want: FormatZstd},
		{v: "ZIP", want: FormatZip},
		{v: "tgz", want: FormatGzip},
		{v: "tar.xz", want: FormatXz},
		{v: "rar", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.v, func(t *testing.T) {
			got, err := ParseFormat(tt.v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
