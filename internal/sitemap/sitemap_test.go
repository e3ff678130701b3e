package sitemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nested = `<!DOCTYPE HTML PUBLIC "-//IETF//DTD HTML//EN">
<HTML>
<HEAD>
<meta name="GENERATOR" content="Microsoft&reg; HTML Help Workshop 4.1">
<!-- Sitemap 1.0 -->
</HEAD><BODY>
<OBJECT type="text/site properties">
	<param name="ImageType" value="Folder">
</OBJECT>
<UL>
	<LI> <OBJECT type="text/sitemap">
		<param name="Name" value="Introduction">
		<param name="Local" value="html/intro.htm">
		</OBJECT>
	<UL>
		<LI> <OBJECT type="text/sitemap">
			<param name="Name" value="Getting &amp; Started">
			<param name="Local" value="html/start.htm">
			</OBJECT>
		<LI> <OBJECT type="text/sitemap">
			<param name="Name" value="Install">
			<param name="Local" value="html/install.htm">
			<param name="Local" value="html/ignored.htm">
			</OBJECT>
	</UL>
	<LI> <OBJECT type="text/sitemap">
		<param name="Name" value="Reference">
		</OBJECT>
</UL>
</BODY></HTML>
`

// closed puts nested lists after explicitly closed items.
const closed = `<html><body>
<ul>
	<li><object type="text/sitemap"><param name="name" value="A"><param name="local" value="a.htm"></object></li>
	<ul>
		<li><object type="text/sitemap"><param name="name" value="A.1"><param name="local" value="a1.htm"></object></li>
	</ul>
	<li><object type="text/sitemap"><param name="name" value="B"><param name="local" value="b.htm"></object></li>
</ul>
</body></html>
`

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		encoding string
		want     []Entry
	}{
		{
			name:     "nested inside items",
			data:     []byte(nested),
			encoding: "windows-1252",
			want: []Entry{
				{
					Name:  "Introduction",
					Local: "html/intro.htm",
					Children: []Entry{
						{Name: "Getting & Started", Local: "html/start.htm"},
						{Name: "Install", Local: "html/install.htm"},
					},
				},
				{Name: "Reference"},
			},
		},
		{
			name:     "nested after closed items",
			data:     []byte(closed),
			encoding: "UTF-8",
			want: []Entry{
				{Name: "A", Local: "a.htm", Children: []Entry{{Name: "A.1", Local: "a1.htm"}}},
				{Name: "B", Local: "b.htm"},
			},
		},
		{
			name: "gbk",
			data: append(append([]byte(`<ul><li><object type="text/sitemap"><param name="Name" value="`),
				0xd6, 0xd0, 0xce, 0xc4), []byte(`"><param name="Local" value="cn.htm"></object></ul>`)...),
			encoding: "gbk",
			want:     []Entry{{Name: "中文", Local: "cn.htm"}},
		},
		{
			name:     "unknown encoding",
			data:     []byte(`<ul><li><object type="text/sitemap"><param name="Name" value="x"></object></ul>`),
			encoding: "no-such-encoding",
			want:     []Entry{{Name: "x"}},
		},
		{
			name:     "no list",
			data:     []byte(`<html><body><p>empty</p></body></html>`),
			encoding: "UTF-8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBytes(tt.data, tt.encoding)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlatten(t *testing.T) {
	entries, err := ParseBytes([]byte(nested), "UTF-8")
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Name: "Introduction", Local: "html/intro.htm"},
		{Name: "Getting & Started", Local: "html/start.htm"},
		{Name: "Install", Local: "html/install.htm"},
		{Name: "Reference"},
	}, Flatten(entries))
	assert.Nil(t, Flatten(nil))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toc.hhc")
	require.NoError(t, os.WriteFile(path, []byte(closed), 0644))

	got, err := Load(path, "UTF-8")
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = Load(filepath.Join(dir, "missing.hhc"), "UTF-8")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
