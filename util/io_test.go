package util

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyBufferWithContext(t *testing.T) {
	var dst bytes.Buffer
	n, err := CopyBufferWithContext(context.Background(), &dst, strings.NewReader("hello, world"), make([]byte, 5))
	assert.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, "hello, world", dst.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst.Reset()
	n, err = CopyBufferWithContext(ctx, &dst, strings.NewReader("hello, world"), make([]byte, 5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(5), n)
}
