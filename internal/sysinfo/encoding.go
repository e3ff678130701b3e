package sysinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// Transcode converts s from the named encoding to UTF-8.
//
// The name is a WHATWG encoding label such as "windows-1252" or "gbk". If the encoding is unknown, s is returned with
// invalid UTF-8 sequences replaced alongside the error.
func Transcode(s, name string) (string, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError)), fmt.Errorf("unknown encoding %q: %w", name, err)
	}

	v, err := enc.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError)), fmt.Errorf("decode from %s error: %w", name, err)
	}

	return v, nil
}

// ResolveOnDisk finds the file extracted for the internal path p under dir.
//
// The exact path is tried first. Archive paths are case-insensitive while the extracted tree may not be, so each path
// segment is then matched case-insensitively against the directory entries. Returns the path on disk, or
// os.ErrNotExist if no file matches.
func ResolveOnDisk(dir, p string) (string, error) {
	exact := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	if _, err := os.Stat(exact); err == nil || !errors.Is(err, os.ErrNotExist) {
		return exact, err
	}

	cur := dir
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}

		entries, err := os.ReadDir(cur)
		if err != nil {
			return "", err
		}

		next := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name(), seg) {
				next = filepath.Join(cur, e.Name())
				break
			}
		}
		if next == "" {
			return "", fmt.Errorf(`resolve "%s" in "%s" error: %w`, p, dir, os.ErrNotExist)
		}

		cur = next
	}

	return cur, nil
}
