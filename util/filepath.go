package util

import "path/filepath"

// StemAndExt splits path into the stem of its base name and an extension that may span several dots.
//
// "Book.chm.gz" yields "Book" and ".chm.gz" where filepath.Ext would only find ".gz". Each dot-separated part of the
// extension must be at most 5 characters, so "manual.helpfile" has no extension at all and its stem is the whole base
// name.
func StemAndExt(path string) (stem, ext string) {
	n := len(path) - 1
	for i, j := n, max(0, n-6); i >= j; i-- {
		switch path[i] {
		case '\\', '/':
			stem = path[i+1:]
			return
		case '.':
			ext = path[i:] + ext
			path = path[:i]
			n = len(path)
			i, j = n, max(0, n-6)
			continue
		}
	}

	stem = filepath.Base(path)
	return
}
