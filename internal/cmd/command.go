package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xchm/internal"
	"github.com/nguyengg/xchm/internal/book"
	"github.com/nguyengg/xchm/internal/config"
	"github.com/nguyengg/xchm/internal/source"
)

type Xchm struct {
	Config  flags.Filename `long:"config" description:"configuration file" default:"~/.xchm/config.ini"`
	Root    string         `long:"root" description:"override the bookshelf root directory"`
	Profile string         `short:"p" long:"profile" description:"override the AWS profile used for s3:// sources"`

	Open     Open     `command:"open" alias:"o" description:"extract books into the bookshelf if needed then print their metadata"`
	Toc      Toc      `command:"toc" description:"print the table of contents of books"`
	Index    Index    `command:"index" description:"print the index of books"`
	Bookmark Bookmark `command:"bookmark" alias:"bm" description:"manage the bookmarks of a book"`
	Export   Export   `command:"export" alias:"x" description:"archive the extracted books"`
	Shelf    Shelf    `command:"shelf" description:"manage the bookshelf"`
}

// NewParser creates the parser for the xchm command line.
//
// The configuration file is loaded before any command executes.
func NewParser() (*flags.Parser, error) {
	opts := &Xchm{}

	p := flags.NewParser(opts, flags.Default)
	p.Name = "xchm"

	p.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}

		config.DefaultLoader.Root = opts.Root
		config.DefaultLoader.Profile = opts.Profile
		if _, err := config.Load(context.Background(), string(opts.Config)); err != nil {
			return fmt.Errorf("load config error: %w", err)
		}

		return command.Execute(args)
	}

	return p, nil
}

// bookOptions applies the bookshelf and font configuration.
func bookOptions(logger *log.Logger, showProgress bool) (func(*book.Options), error) {
	shelf, err := config.ForBookshelf()
	if err != nil {
		return nil, err
	}

	fonts := config.ForFonts()

	return func(opts *book.Options) {
		opts.Root = shelf.Root
		opts.Fingerprint = shelf.Fingerprint
		opts.VariableFont = fonts.Variable
		opts.FixedFont = fonts.Fixed
		opts.ShowProgress = showProgress
		opts.Logger = logger
	}, nil
}

// forEachBook opens every file as a book, one at a time, and calls fn with the file's name and the book.
//
// The context passed to fn carries the logger for the file. A failing file is logged and does not stop the others
// unless the context is cancelled. Returns the number of files for which fn succeeded.
func forEachBook(ctx context.Context, files []flags.Filename, showProgress bool, fn func(ctx context.Context, name string, b *book.Book) error) (success int, err error) {
	n := len(files)
	for i, file := range files {
		ctx := internal.WithPrefixLogger(ctx, internal.Prefix(i, n, file))
		logger := internal.MustLogger(ctx)

		if err = withBook(ctx, string(file), showProgress, fn); err == nil {
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			return success, err
		}

		logger.Printf("%v", err)
	}

	return success, nil
}

func withBook(ctx context.Context, name string, showProgress bool, fn func(ctx context.Context, name string, b *book.Book) error) error {
	logger := internal.MustLogger(ctx)

	optFn, err := bookOptions(logger, showProgress)
	if err != nil {
		return err
	}

	staged, err := source.Stage(ctx, name, func(opts *source.Options) {
		opts.Logger = logger
	})
	if err != nil {
		return fmt.Errorf("stage error: %w", err)
	}
	defer func() {
		if err := staged.Close(); err != nil {
			logger.Printf("clean up staged files error: %v", err)
		}
	}()

	b, err := book.Open(ctx, staged.Path, optFn, func(opts *book.Options) {
		opts.SourcePath = staged.Name
	})
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(ctx, name, b)
}
