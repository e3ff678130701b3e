// Package export archives the extraction directory of a book.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/xchm/internal"
	"github.com/nguyengg/xchm/internal/book"
	"github.com/nguyengg/xchm/util"
	"github.com/schollz/progressbar/v3"
)

const defaultBufferSize = 32 * 1024

// Options customises Export.
type Options struct {
	// Format defaults to DefaultFormat.
	Format Format

	// Prefix is the top-level directory of every entry in the archive. Defaults to the base name of the exported
	// directory.
	Prefix string

	// MaxConcurrency customises the concurrency level.
	//
	// Applicable only for formats that support it (zstd). The zero value lets the encoder use its default.
	MaxConcurrency int

	// ShowProgress displays a progress bar on stderr.
	ShowProgress bool

	// Logger defaults to log.Default.
	Logger *log.Logger
}

// archiver writes the files of a directory into an archive, one AddFile followed by the file's content at a time.
type archiver interface {
	io.WriteCloser

	AddFile(fi fs.FileInfo, name string) error
}

// Export writes every regular file under dir into an archive written to dst.
//
// The completion marker of the bookshelf is not exported.
func Export(ctx context.Context, dir string, dst io.Writer, optFns ...func(*Options)) error {
	opts := &Options{Format: DefaultFormat}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Prefix == "" {
		opts.Prefix = filepath.Base(dir)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		if _, size, err := dirSize(dir); err == nil {
			bar = internal.DefaultBytes(size, fmt.Sprintf(`exporting "%s"`, opts.Prefix))
			defer bar.Close()
		}
	}

	ar, err := opts.Format.createArchiver(dst, opts)
	if err != nil {
		return fmt.Errorf("create archiver error: %w", err)
	}

	var (
		buf   = make([]byte, defaultBufferSize)
		files int
		size  int64
	)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk dir error: %w", err)
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || (d.Name() == book.MarkerName && filepath.Dir(path) == filepath.Clean(dir)) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(opts.Prefix, rel))

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf(`stat file "%s" error: %w`, path, err)
		}
		if err = ar.AddFile(fi, name); err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf(`open file "%s" error: %w`, path, err)
		}
		defer src.Close()

		var w io.Writer = ar
		if bar != nil {
			w = io.MultiWriter(ar, bar)
		}

		n, err := util.CopyBufferWithContext(ctx, w, src, buf)
		if err != nil {
			return fmt.Errorf(`add file "%s" to archive error: %w`, path, err)
		}

		files++
		size += n
		return nil
	})
	if err == nil {
		err = ar.Close()
	}
	if err != nil {
		return fmt.Errorf("export error: %w", err)
	}

	opts.Logger.Printf("exported %d files (%s)", files, humanize.Bytes(uint64(size)))
	return nil
}

// ExportFile exports dir to a new file in parent named after stem and the format's extension.
//
// A numeric suffix is added to stem if the file already exists. The name of the created file is returned. The file is
// removed if export fails.
func ExportFile(ctx context.Context, dir, parent, stem string, optFns ...func(*Options)) (name string, err error) {
	opts := &Options{Format: DefaultFormat}
	for _, fn := range optFns {
		fn(opts)
	}

	f, err := util.OpenExclFile(parent, stem, opts.Format.Ext(), 0666)
	if err != nil {
		return "", err
	}

	name = f.Name()
	if err = Export(ctx, dir, f, optFns...); err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}

	if err != nil {
		if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Printf(`remove incomplete export "%s" error: %v`, name, rmErr)
		}
		return "", err
	}

	return name, nil
}

func dirSize(dir string) (n int, size int64, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil, d.IsDir(), !d.Type().IsRegular():
			return err
		default:
			fi, err := d.Info()
			if err != nil {
				return err
			}

			n++
			size += fi.Size()
			return nil
		}
	})

	return
}
