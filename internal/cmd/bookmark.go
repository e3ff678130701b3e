package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xchm/internal/book"
)

type Bookmark struct {
	Add    BookmarkAdd    `command:"add" description:"add or rename a bookmark"`
	List   BookmarkList   `command:"list" alias:"ls" description:"list the bookmarks of books"`
	Remove BookmarkRemove `command:"remove" alias:"rm" description:"remove a bookmark"`
}

type BookmarkAdd struct {
	Args struct {
		File flags.Filename `positional-arg-name:"file" description:"CHM file, archive containing one, or S3 URI" required:"yes"`
		Link string         `positional-arg-name:"link" description:"path of the page relative to the book, such as /html/index.html" required:"yes"`
		Name string         `positional-arg-name:"name" description:"display name of the bookmark; defaults to the link"`
	} `positional-args:"yes"`
}

func (c *BookmarkAdd) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	title := c.Args.Name
	if title == "" {
		title = c.Args.Link
	}

	return withSingleBook(c.Args.File, func(ctx context.Context, name string, b *book.Book) error {
		f, err := b.Open(c.Args.Link)
		if err != nil {
			return fmt.Errorf(`bookmark "%s" error: %w`, c.Args.Link, err)
		}
		_ = f.Close()

		b.Bookmarks().Add(title, c.Args.Link)
		log.Printf(`bookmarked "%s" as "%s"`, c.Args.Link, title)
		return nil
	})
}

type BookmarkList struct {
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"CHM files, archives containing them, or S3 URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *BookmarkList) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success, err := forEachBook(ctx, c.Args.Files, false, func(ctx context.Context, name string, b *book.Book) error {
		fmt.Printf("%s:\n", b.Title())
		for _, bm := range b.Bookmarks().Items() {
			fmt.Printf("  %s\t%s\n", bm.Name, bm.Link)
		}
		return nil
	})

	n := len(c.Args.Files)
	if err != nil {
		log.Printf("interrupted; successfully listed %d/%d files", success, n)
		return nil
	}

	log.Printf("successfully listed %d/%d files", success, n)
	return nil
}

type BookmarkRemove struct {
	Args struct {
		File flags.Filename `positional-arg-name:"file" description:"CHM file, archive containing one, or S3 URI" required:"yes"`
		Link string         `positional-arg-name:"link" description:"link of the bookmark to remove" required:"yes"`
	} `positional-args:"yes"`
}

func (c *BookmarkRemove) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	return withSingleBook(c.Args.File, func(ctx context.Context, name string, b *book.Book) error {
		if !b.Bookmarks().Remove(c.Args.Link) {
			return fmt.Errorf(`no bookmark for "%s"`, c.Args.Link)
		}

		log.Printf(`removed bookmark "%s"`, c.Args.Link)
		return nil
	})
}

func withSingleBook(file flags.Filename, fn func(ctx context.Context, name string, b *book.Book) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	return withBook(ctx, string(file), false, fn)
}
