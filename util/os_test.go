package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenExclFile(t *testing.T) {
	dir := t.TempDir()

	for _, want := range []string{"Book.tar.zst", "Book-1.tar.zst", "Book-2.tar.zst"} {
		f, err := OpenExclFile(dir, "Book", ".tar.zst", 0666)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, want), f.Name())
		assert.NoError(t, f.Close())
	}

	_, err := OpenExclFile(filepath.Join(dir, "missing"), "Book", ".zip", 0666)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirBase(t *testing.T) {
	assert.Equal(t, filepath.Join("exports", "Book.zip"), DirBase(filepath.Join("home", "exports", "Book.zip")))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Base(wd), "Book.zip"), DirBase("Book.zip"))
}
