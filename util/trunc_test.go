package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRightWithSuffix(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		n      int
		suffix string
		want   string
	}{
		{name: "fits", text: "hello", n: 5, suffix: "...", want: "hello"},
		{name: "truncated", text: "hello, world", n: 5, suffix: "...", want: "hello..."},
		{name: "runes", text: "中文帮助文件", n: 2, suffix: "…", want: "中文…"},
		{name: "zero", text: "hello", n: 0, suffix: "...", want: "..."},
		{name: "negative", text: "hello", n: -1, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRightWithSuffix(tt.text, tt.n, tt.suffix))
		})
	}
}

func TestStemAndExt(t *testing.T) {
	tests := []struct {
		path     string
		wantStem string
		wantExt  string
	}{
		{path: "book.chm", wantStem: "book", wantExt: ".chm"},
		{path: "/home/user/book.chm.gz", wantStem: "book", wantExt: ".chm.gz"},
		{path: "books/manual.tar.zst", wantStem: "manual", wantExt: ".tar.zst"},
		{path: "README", wantStem: "README", wantExt: ""},
		{path: "release-notes.helpfile", wantStem: "release-notes.helpfile", wantExt: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			stem, ext := StemAndExt(tt.path)
			assert.Equal(t, tt.wantStem, stem)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}
