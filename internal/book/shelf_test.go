package book

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xchm/internal/bookinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShelf(t *testing.T) {
	root := t.TempDir()
	s := Shelf{Root: root}

	good := s.Path("good")
	require.NoError(t, os.MkdirAll(good, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(good, MarkerName), []byte("x\n"), 0644))
	require.NoError(t, bookinfo.Save(good, bookinfo.Info{Title: "Good Book"}))

	stale := s.Path("stale")
	require.NoError(t, os.MkdirAll(stale, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "page.html"), []byte("12345"), 0644))

	partial := filepath.Join(root, ".good.0000.partial")
	require.NoError(t, os.MkdirAll(partial, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("notes"), 0644))

	_, ok, err := s.Lookup("good")
	assert.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = s.Lookup("stale")
	assert.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Lookup("missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "good", entries[0].Fingerprint)
	assert.Equal(t, "Good Book", entries[0].Title)
	assert.True(t, entries[0].Complete)
	assert.Equal(t, ShelfEntry{Fingerprint: "stale", Dir: stale, Size: 5}, entries[1])

	removed, err := s.Prune()
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{stale, partial}, removed)
	assert.NoDirExists(t, stale)
	assert.NoDirExists(t, partial)
	assert.DirExists(t, good)
	assert.FileExists(t, filepath.Join(root, "notes.txt"))

	assert.Error(t, s.Remove("../good"))
	assert.Error(t, s.Remove(".good.0000.partial"))
	assert.ErrorIs(t, s.Remove("missing"), os.ErrNotExist)
	assert.NoError(t, s.Remove("good"))
	assert.NoDirExists(t, good)
}

func TestShelf_missingRoot(t *testing.T) {
	s := Shelf{Root: filepath.Join(t.TempDir(), "missing")}

	entries, err := s.List()
	assert.NoError(t, err)
	assert.Empty(t, entries)

	removed, err := s.Prune()
	assert.NoError(t, err)
	assert.Empty(t, removed)
}

func TestShelf_commit(t *testing.T) {
	s := Shelf{Root: t.TempDir()}

	// a stale directory in the way is replaced.
	require.NoError(t, os.MkdirAll(filepath.Join(s.Path("fp"), "old"), 0755))

	staging, err := s.stage("fp")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staging, "new"), nil, 0644))

	dir, err := s.commit(staging, "fp")
	require.NoError(t, err)
	assert.Equal(t, s.Path("fp"), dir)
	assert.FileExists(t, filepath.Join(dir, "new"))
	assert.NoDirExists(t, filepath.Join(dir, "old"))
	assert.NoDirExists(t, staging)

	// a complete directory wins over a later staging directory.
	staging, err = s.stage("fp")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staging, "newer"), []byte("x"), 0644))

	dir, err = s.commit(staging, "fp")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "new"))
	assert.NoFileExists(t, filepath.Join(dir, "newer"))
	assert.NoDirExists(t, staging)
}
