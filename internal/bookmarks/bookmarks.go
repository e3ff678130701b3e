// Package bookmarks keeps the ordered list of bookmarks of a book.
package bookmarks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// FileName is the name of the bookmarks file at the root of an extraction directory.
const FileName = "bookmarks.yaml"

// Bookmark is a named link to a content file of the book.
type Bookmark struct {
	Name string `yaml:"name"`
	Link string `yaml:"link"`
}

// List is an ordered list of bookmarks with unique links.
//
// The zero value is an empty list ready to use.
type List struct {
	items []Bookmark
}

// Add appends a bookmark, or renames the existing one with the same link in place.
func (l *List) Add(name, link string) {
	if i := l.index(link); i >= 0 {
		l.items[i].Name = name
		return
	}

	l.items = append(l.items, Bookmark{Name: name, Link: link})
}

// Remove deletes the bookmark with the given link, returning false if there was none.
func (l *List) Remove(link string) bool {
	i := l.index(link)
	if i < 0 {
		return false
	}

	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// Items returns a copy of the bookmarks in order.
func (l *List) Items() []Bookmark {
	return append([]Bookmark(nil), l.items...)
}

// Len returns the number of bookmarks.
func (l *List) Len() int {
	return len(l.items)
}

func (l *List) index(link string) int {
	for i, b := range l.items {
		if b.Link == link {
			return i
		}
	}

	return -1
}

// Save writes the list to the bookmarks file in dir.
func (l *List) Save(dir string) error {
	data, err := yaml.Marshal(l.items)
	if err != nil {
		return fmt.Errorf("marshal bookmarks error: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err = os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf(`write bookmarks "%s" error: %w`, path, err)
	}

	return nil
}

// Load reads the bookmarks file in dir.
//
// A missing file is not an error and returns an empty list.
func Load(dir string) (*List, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &List{}, nil
		}

		return nil, fmt.Errorf(`read bookmarks "%s" error: %w`, path, err)
	}

	l := &List{}
	if err = yaml.Unmarshal(data, &l.items); err != nil {
		return nil, fmt.Errorf(`unmarshal bookmarks "%s" error: %w`, path, err)
	}

	return l, nil
}
