// Package book opens CHM archives as books: extracted once into the bookshelf, then described by the metadata decoded
// from their control objects.
package book

import (
	"fmt"
	"log"
	"os"

	"github.com/nguyengg/xchm/internal/bookinfo"
	"github.com/nguyengg/xchm/internal/bookmarks"
	"github.com/nguyengg/xchm/internal/extract"
	"github.com/nguyengg/xchm/internal/sitemap"
	"github.com/nguyengg/xchm/internal/sysinfo"
)

// Metadata is the part of a book describing it.
type Metadata interface {
	Dir() string
	Title() string
	Home() string
	Encoding() string
	VariableFont() string
	FixedFont() string
	SetVariableFont(font string)
	SetFixedFont(font string)
}

// Content is the part of a book giving access to what was extracted.
type Content interface {
	LinkTree() []sitemap.Entry
	Index() []sitemap.Entry
	Bookmarks() *bookmarks.List
	Open(path string) (*os.File, error)
}

var (
	_ Metadata = (*Book)(nil)
	_ Content  = (*Book)(nil)
)

// Book is an archive that has been extracted into the bookshelf.
type Book struct {
	source string
	dir    string
	info   bookinfo.Info

	linkTree  []sitemap.Entry
	index     []sitemap.Entry
	bookmarks *bookmarks.List

	logger *log.Logger
}

// SourcePath returns the original location of the archive, which may no longer exist locally.
func (b *Book) SourcePath() string { return b.source }

// Dir returns the extraction directory.
func (b *Book) Dir() string { return b.dir }

// HHC returns the internal path of the table of contents, or empty if the book has none.
func (b *Book) HHC() string { return b.info.HHC }

// HHK returns the internal path of the index, or empty if the book has none.
func (b *Book) HHK() string { return b.info.HHK }

// Home returns the internal path of the default topic.
func (b *Book) Home() string { return b.info.Home }

// Title returns the title, already in UTF-8.
func (b *Book) Title() string { return b.info.Title }

// Encoding returns the encoding of the book's content. Never empty.
func (b *Book) Encoding() string { return b.info.Encoding }

func (b *Book) VariableFont() string { return b.info.VariableFont }

func (b *Book) FixedFont() string { return b.info.FixedFont }

func (b *Book) SetVariableFont(font string) { b.info.VariableFont = font }

func (b *Book) SetFixedFont(font string) { b.info.FixedFont = font }

// LinkTree returns the table of contents.
func (b *Book) LinkTree() []sitemap.Entry { return b.linkTree }

// Index returns the entries of the index in order.
func (b *Book) Index() []sitemap.Entry { return b.index }

// Bookmarks returns the bookmarks, which are saved by Close.
func (b *Book) Bookmarks() *bookmarks.List { return b.bookmarks }

// Open opens the extracted file of the internal path.
//
// Internal paths are case-insensitive so the extracted tree is searched case-insensitively if the exact path does not
// exist.
func (b *Book) Open(path string) (*os.File, error) {
	if _, err := extract.Join(b.dir, path); err != nil {
		return nil, err
	}

	name, err := sysinfo.ResolveOnDisk(b.dir, path)
	if err != nil {
		return nil, err
	}

	return os.Open(name)
}

// Close saves the book info and bookmarks.
//
// Failures are logged since they do not affect the book already in use.
func (b *Book) Close() {
	if err := bookinfo.Save(b.dir, b.info); err != nil {
		b.logger.Printf("save book info error: %v", err)
	}

	if err := b.bookmarks.Save(b.dir); err != nil {
		b.logger.Printf("save bookmarks error: %v", err)
	}
}

// loadNavigation parses the table of contents and index of the extracted book.
func (b *Book) loadNavigation() {
	b.linkTree = b.loadSitemap(b.info.HHC, "hhc")

	if b.info.HHK != "" {
		b.index = sitemap.Flatten(b.loadSitemap(b.info.HHK, "hhk"))
	}
}

func (b *Book) loadSitemap(path, kind string) []sitemap.Entry {
	if path == "" {
		b.logger.Printf("%s not found", kind)
		return nil
	}

	name, err := sysinfo.ResolveOnDisk(b.dir, path)
	if err != nil {
		b.logger.Printf(`%s "%s" not found: %v`, kind, path, err)
		return nil
	}

	entries, err := sitemap.Load(name, b.info.Encoding)
	if err != nil {
		b.logger.Printf("%v", err)
		return nil
	}

	return entries
}

func (b *Book) String() string {
	return fmt.Sprintf(`%s (%s)`, b.info.Title, b.dir)
}
