package bookmarks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	l := &List{}
	l.Add("Intro", "/html/intro.htm")
	l.Add("API", "/html/api.htm")
	l.Add("FAQ", "/html/faq.htm")
	l.Add("Introduction", "/html/intro.htm")

	assert.Equal(t, []Bookmark{
		{Name: "Introduction", Link: "/html/intro.htm"},
		{Name: "API", Link: "/html/api.htm"},
		{Name: "FAQ", Link: "/html/faq.htm"},
	}, l.Items())

	assert.True(t, l.Remove("/html/api.htm"))
	assert.False(t, l.Remove("/html/api.htm"))
	assert.Equal(t, 2, l.Len())

	// Items returns a copy.
	items := l.Items()
	items[0].Name = "changed"
	assert.Equal(t, "Introduction", l.Items()[0].Name)
}

func TestSaveLoad(t *testing.T) {
	tests := []struct {
		name  string
		items [][2]string
	}{
		{name: "empty"},
		{
			name: "ordered",
			items: [][2]string{
				{"Zeta", "/z.htm"},
				{"Alpha: the first", "/a.htm#top"},
				{"中文", "/cn/索引.htm"},
				{"- dash", "/d.htm"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			l := &List{}
			for _, item := range tt.items {
				l.Add(item[0], item[1])
			}
			require.NoError(t, l.Save(dir))

			got, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, l.Len(), got.Len())
			assert.Equal(t, l.Items(), got.Items())
		})
	}
}

func TestLoad_missing(t *testing.T) {
	l, err := Load(t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestLoad_invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("name: [unterminated"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}
