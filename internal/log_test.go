package internal

import (
	"context"
	"log"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
)

func TestPrefix(t *testing.T) {
	tests := []struct {
		name string
		i, n int
		file string
		want string
	}{
		{name: "short", i: 0, n: 2, file: "/tmp/books/a.chm", want: `[1/2] "a.chm" - `},
		{name: "truncated", i: 4, n: 5, file: "a-very-long-name-for-a-compiled-help-file.chm", want: `[5/5] "a-very-long-name-for-a-compile..." - `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prefix(tt.i, tt.n, flags.Filename(tt.file)))
		})
	}
}

func TestMustLogger(t *testing.T) {
	assert.Same(t, log.Default(), MustLogger(context.Background()))

	ctx := WithPrefixLogger(context.Background(), "[1/1] ")
	assert.Equal(t, "[1/1] ", MustLogger(ctx).Prefix())
}
