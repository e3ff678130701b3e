package bookinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	tests := []struct {
		name string
		info Info
	}{
		{
			name: "all fields",
			info: Info{
				HHC:          "/toc.hhc",
				HHK:          "/index.hhk",
				Home:         "/html/intro.htm",
				Title:        "Programming Windows",
				Encoding:     "windows-1252",
				VariableFont: "Sans 12",
				FixedFont:    "Monospace 12",
			},
		},
		{
			name: "special characters",
			info: Info{
				HHC:          "/C# Reference/toc.hhc",
				Title:        "C# ; F# = fun # not a comment",
				Encoding:     "gbk",
				VariableFont: "  padded  ",
				FixedFont:    "back`tick",
			},
		},
		{
			name: "quotes",
			info: Info{
				Title:        `"Quoted"`,
				Home:         `'/single.htm'`,
				Encoding:     `say "hi"`,
				VariableFont: `  "padded" and quoted `,
				FixedFont:    `"it's"`,
			},
		},
		{
			name: "unicode",
			info: Info{
				Title:    "中文帮助",
				Encoding: "gbk",
			},
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, Save(dir, tt.info))

			var got Info
			assert.NoError(t, Load(dir, &got))
			assert.Equal(t, tt.info, got)
		})
	}
}

func TestLoad_keepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("title=Old Book\nhhc=/toc.hhc\nunknown=ignored\n"), 0644))

	got := Info{Encoding: "UTF-8", VariableFont: "Sans 12", FixedFont: "Monospace 12"}
	assert.NoError(t, Load(dir, &got))
	assert.Equal(t, Info{
		HHC:          "/toc.hhc",
		Title:        "Old Book",
		Encoding:     "UTF-8",
		VariableFont: "Sans 12",
		FixedFont:    "Monospace 12",
	}, got)
}

func TestLoad_missing(t *testing.T) {
	got := Info{Encoding: "UTF-8"}
	assert.Error(t, Load(t.TempDir(), &got))
	assert.Equal(t, Info{Encoding: "UTF-8"}, got)
}

func TestSave_unwritable(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "missing", "dir"), Info{Title: "x"})
	assert.Error(t, err)
}
