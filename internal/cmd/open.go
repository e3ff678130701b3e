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
	"github.com/nguyengg/xchm/internal/sitemap"
)

type Open struct {
	Quiet        bool   `short:"q" long:"quiet" description:"do not show extraction progress"`
	VariableFont string `long:"variable-font" description:"change the proportional font of the books" value-name:"FONT"`
	FixedFont    string `long:"fixed-font" description:"change the monospace font of the books" value-name:"FONT"`
	Args         struct {
		Files []flags.Filename `positional-arg-name:"file" description:"CHM files, archives containing them, or S3 URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Open) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success, err := forEachBook(ctx, c.Args.Files, !c.Quiet, func(ctx context.Context, name string, b *book.Book) error {
		if c.VariableFont != "" {
			b.SetVariableFont(c.VariableFont)
		}
		if c.FixedFont != "" {
			b.SetFixedFont(c.FixedFont)
		}

		printInfo(b)
		return nil
	})

	n := len(c.Args.Files)
	if err != nil {
		log.Printf("interrupted; successfully opened %d/%d files", success, n)
		return nil
	}

	log.Printf("successfully opened %d/%d files", success, n)
	return nil
}

func printInfo(b *book.Book) {
	fmt.Printf("Title:         %s\n", b.Title())
	fmt.Printf("Directory:     %s\n", b.Dir())
	fmt.Printf("Home:          %s\n", b.Home())
	fmt.Printf("Contents:      %s (%d entries)\n", b.HHC(), len(sitemap.Flatten(b.LinkTree())))
	fmt.Printf("Index:         %s (%d entries)\n", b.HHK(), len(sitemap.Flatten(b.Index())))
	fmt.Printf("Encoding:      %s\n", b.Encoding())
	fmt.Printf("Variable font: %s\n", b.VariableFont())
	fmt.Printf("Fixed font:    %s\n", b.FixedFont())
	fmt.Printf("Bookmarks:     %d\n", b.Bookmarks().Len())
}

type Toc struct {
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"CHM files, archives containing them, or S3 URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Toc) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	return printSitemaps(c.Args.Files, (*book.Book).LinkTree)
}

type Index struct {
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"CHM files, archives containing them, or S3 URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Index) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	return printSitemaps(c.Args.Files, (*book.Book).Index)
}

func printSitemaps(files []flags.Filename, fn func(*book.Book) []sitemap.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success, err := forEachBook(ctx, files, false, func(ctx context.Context, name string, b *book.Book) error {
		entries := fn(b)
		if len(entries) == 0 {
			return fmt.Errorf("%s has no entries", b)
		}

		writeEntries(os.Stdout, entries, 0)
		return nil
	})

	n := len(files)
	if err != nil {
		log.Printf("interrupted; successfully printed %d/%d files", success, n)
		return nil
	}

	log.Printf("successfully printed %d/%d files", success, n)
	return nil
}

func writeEntries(w *os.File, entries []sitemap.Entry, depth int) {
	for _, e := range entries {
		if e.Local == "" {
			_, _ = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), e.Name)
		} else {
			_, _ = fmt.Fprintf(w, "%s%s\t%s\n", strings.Repeat("  ", depth), e.Name, e.Local)
		}

		writeEntries(w, e.Children, depth+1)
	}
}
