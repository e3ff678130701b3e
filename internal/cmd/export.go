package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xchm/internal"
	"github.com/nguyengg/xchm/internal/book"
	"github.com/nguyengg/xchm/internal/export"
	"github.com/nguyengg/xchm/util"
)

type Export struct {
	Format         string         `short:"f" long:"format" choice:"zstd" choice:"zip" choice:"gzip" choice:"xz" default:"zstd" description:"archive format of the exported books"`
	OutputDir      flags.Filename `short:"o" long:"output-dir" description:"directory to write the archives to" default:"."`
	MaxConcurrency int            `short:"P" long:"max-concurrency" description:"maximum number of concurrent encoder goroutines; only applicable to zstd"`
	Args           struct {
		Files []flags.Filename `positional-arg-name:"file" description:"CHM files, archives containing them, or S3 URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Export) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(string(c.OutputDir), 0755); err != nil {
		return fmt.Errorf(`create output directory "%s" error: %w`, c.OutputDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success, err := forEachBook(ctx, c.Args.Files, true, func(ctx context.Context, name string, b *book.Book) error {
		logger := internal.MustLogger(ctx)

		stem, _ := util.StemAndExt(name)
		exported, err := export.ExportFile(ctx, b.Dir(), string(c.OutputDir), stem, func(opts *export.Options) {
			opts.Format = format
			opts.MaxConcurrency = c.MaxConcurrency
			opts.ShowProgress = true
			opts.Logger = logger
		})
		if err != nil {
			return fmt.Errorf("export error: %w", err)
		}

		logger.Printf(`exported to "%s"`, util.DirBase(exported))
		return nil
	})

	n := len(c.Args.Files)
	if err != nil {
		log.Printf("interrupted; successfully exported %d/%d files", success, n)
		return nil
	}

	log.Printf("successfully exported %d/%d files", success, n)
	return nil
}
