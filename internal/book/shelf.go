package book

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nguyengg/xchm/internal/bookinfo"
)

const (
	// MarkerName is the file written last into an extraction directory to prove that extraction completed.
	MarkerName = ".xchm-complete"

	partialSuffix = ".partial"
)

// Shelf is the bookshelf: a root directory holding one extraction directory per fingerprint.
//
// Extraction happens in a hidden staging directory "<root>/.<fingerprint>.<uuid>.partial" that is renamed to
// "<root>/<fingerprint>" once complete, so a directory under its final name either carries the completion marker or
// is a leftover from an older layout, which is considered stale.
type Shelf struct {
	Root string
}

// ShelfEntry describes one extraction directory.
type ShelfEntry struct {
	Fingerprint string
	Dir         string
	Title       string
	Size        int64
	Complete    bool
}

// Path returns the extraction directory for the fingerprint.
func (s Shelf) Path(fp string) string {
	return filepath.Join(s.Root, fp)
}

// Lookup returns whether the fingerprint has a complete extraction directory.
func (s Shelf) Lookup(fp string) (dir string, ok bool, err error) {
	dir = s.Path(fp)

	if fi, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dir, false, nil
		}
		return dir, false, err
	} else if !fi.IsDir() {
		return dir, false, nil
	}

	if _, err = os.Stat(filepath.Join(dir, MarkerName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dir, false, nil
		}
		return dir, false, err
	}

	return dir, true, nil
}

// List returns the extraction directories on the shelf, excluding staging directories.
func (s Shelf) List() ([]ShelfEntry, error) {
	des, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(`read bookshelf "%s" error: %w`, s.Root, err)
	}

	var entries []ShelfEntry
	for _, de := range des {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}

		e := ShelfEntry{Fingerprint: de.Name(), Dir: s.Path(de.Name())}
		_, e.Complete, _ = s.Lookup(e.Fingerprint)

		var info bookinfo.Info
		if err = bookinfo.Load(e.Dir, &info); err == nil {
			e.Title = info.Title
		}

		if e.Size, err = dirSize(e.Dir); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// Remove deletes the extraction directory of the fingerprint.
func (s Shelf) Remove(fp string) error {
	if fp == "" || fp != filepath.Base(fp) || strings.HasPrefix(fp, ".") {
		return fmt.Errorf("invalid fingerprint %q", fp)
	}

	dir := s.Path(fp)
	if _, err := os.Stat(dir); err != nil {
		return err
	}

	return os.RemoveAll(dir)
}

// Prune deletes staging directories and extraction directories that lack the completion marker.
//
// Returns the deleted paths.
func (s Shelf) Prune() (removed []string, err error) {
	des, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(`read bookshelf "%s" error: %w`, s.Root, err)
	}

	for _, de := range des {
		if !de.IsDir() {
			continue
		}

		name := de.Name()
		switch {
		case strings.HasPrefix(name, ".") && strings.HasSuffix(name, partialSuffix):
		case strings.HasPrefix(name, "."):
			continue
		default:
			if _, ok, err := s.Lookup(name); err != nil || ok {
				continue
			}
		}

		path := filepath.Join(s.Root, name)
		if err = os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf(`remove "%s" error: %w`, path, err)
		}
		removed = append(removed, path)
	}

	return removed, nil
}

// stage creates a new staging directory for the fingerprint.
func (s Shelf) stage(fp string) (string, error) {
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return "", fmt.Errorf(`create bookshelf "%s" error: %w`, s.Root, err)
	}

	dir := filepath.Join(s.Root, "."+fp+"."+uuid.NewString()+partialSuffix)
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf(`create staging directory "%s" error: %w`, dir, err)
	}

	return dir, nil
}

// commit writes the completion marker into the staging directory then renames it to the extraction directory.
//
// A stale extraction directory in the way is replaced. If another extraction of the same fingerprint completed first,
// the staging directory is discarded in favour of it.
func (s Shelf) commit(staging, fp string) (string, error) {
	marker := filepath.Join(staging, MarkerName)
	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return "", fmt.Errorf(`write completion marker "%s" error: %w`, marker, err)
	}

	dir := s.Path(fp)
	if err := os.Rename(staging, dir); err == nil {
		return dir, nil
	}

	if _, ok, _ := s.Lookup(fp); ok {
		return dir, os.RemoveAll(staging)
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf(`remove stale directory "%s" error: %w`, dir, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return "", fmt.Errorf(`rename "%s" to "%s" error: %w`, staging, dir, err)
	}

	return dir, nil
}

func dirSize(dir string) (size int64, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			size += fi.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf(`compute size of "%s" error: %w`, dir, err)
	}

	return size, nil
}
