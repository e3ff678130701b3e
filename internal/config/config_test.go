package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xchm/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `[bookshelf]
root = /var/lib/xchm
fingerprint = MD5

[fonts]
variable = Serif 14

[s3]
profile = books

[s3://archive]
aws-profile = archive-reader
expected-bucket-owner = 123456789012
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader(t *testing.T) {
	l := &Loader{}
	_, err := l.Load(context.Background(), writeConfig(t, sample))
	require.NoError(t, err)

	shelf, err := l.ForBookshelf()
	assert.NoError(t, err)
	assert.Equal(t, BookshelfConfig{Root: "/var/lib/xchm", Fingerprint: fingerprint.MD5}, shelf)

	assert.Equal(t, FontsConfig{Variable: "Serif 14", Fixed: DefaultFixedFont}, l.ForFonts())

	assert.Equal(t, BucketConfig{Bucket: "other", AWSProfile: "books"}, l.ForBucket("other"))

	c := l.ForBucket("archive")
	assert.Equal(t, "archive-reader", c.AWSProfile)
	if assert.NotNil(t, c.ExpectedBucketOwner) {
		assert.Equal(t, "123456789012", *c.ExpectedBucketOwner)
	}
}

func TestLoader_overrides(t *testing.T) {
	l := &Loader{Root: "/tmp/shelf"}
	_, err := l.Load(context.Background(), writeConfig(t, sample))
	require.NoError(t, err)

	shelf, err := l.ForBookshelf()
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/shelf", shelf.Root)
}

func TestLoader_missing(t *testing.T) {
	l := &Loader{}
	path := filepath.Join(t.TempDir(), "missing.ini")
	got, err := l.Load(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, path, got)

	shelf, err := l.ForBookshelf()
	assert.NoError(t, err)
	assert.Equal(t, fingerprint.SHA256, shelf.Fingerprint)
	assert.True(t, filepath.IsAbs(shelf.Root))
	assert.Equal(t, "bookshelf", filepath.Base(shelf.Root))

	assert.Equal(t, FontsConfig{Variable: DefaultVariableFont, Fixed: DefaultFixedFont}, l.ForFonts())
	assert.Equal(t, BucketConfig{Bucket: "b"}, l.ForBucket("b"))
}

func TestLoader_invalid(t *testing.T) {
	l := &Loader{}
	_, err := l.Load(context.Background(), writeConfig(t, "[bookshelf]\nfingerprint = crc32\n"))
	require.NoError(t, err)

	_, err = l.ForBookshelf()
	assert.Error(t, err)
}

func TestLoader_zeroValue(t *testing.T) {
	l := &Loader{}
	assert.Equal(t, FontsConfig{Variable: DefaultVariableFont, Fixed: DefaultFixedFont}, l.ForFonts())
	assert.Equal(t, BucketConfig{Bucket: "b"}, l.ForBucket("b"))
}
