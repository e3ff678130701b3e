package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/xchm/chm"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

const defaultBufferSize = 32 * 1024

var (
	// ErrShortRead is returned if the archive returns no data before the declared length of an object is consumed.
	ErrShortRead = errors.New("short read from archive")

	// ErrUnsafePath is returned if an internal path would be written outside the base directory.
	ErrUnsafePath = errors.New("internal path escapes base directory")
)

// Archive is the subset of *chm.File needed for extraction.
type Archive interface {
	Enumerate(what chm.Flags, fn func(chm.UnitInfo) error) error
	Retrieve(ui chm.UnitInfo, buf []byte, offset uint64) (int, error)
}

// Options customises Extract.
type Options struct {
	// ProgressBar if given will be used to provide progress report.
	ProgressBar *progressbar.ProgressBar

	// Logger receives periodic progress messages. Defaults to log.Default.
	Logger *log.Logger
}

// Stats summarises an extraction.
type Stats struct {
	Files   int
	Dirs    int
	Skipped int
	Bytes   int64
}

// Size returns the number of objects and their total length, which can be used to size a progress bar.
func Size(a Archive) (n int, size int64, err error) {
	err = a.Enumerate(chm.EnumerateAll, func(ui chm.UnitInfo) error {
		n++
		size += int64(ui.Length)
		return nil
	})
	return
}

// Extract materialises every object of the archive whose path starts with "/" under dir.
//
// Zero-length objects become directories; all others become files with byte-identical content. Files whose name
// contains ";" (a version suffix some archives carry) are renamed to the part before it. Any failure aborts the whole
// extraction without removing what was already written.
//
// The context is checked between objects only.
func Extract(ctx context.Context, a Archive, dir string, optFns ...func(*Options)) (stats Stats, err error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	var (
		buf       = make([]byte, defaultBufferSize)
		sometimes = rate.Sometimes{Interval: 5 * time.Second}
	)

	err = a.Enumerate(chm.EnumerateAll, func(ui chm.UnitInfo) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !strings.HasPrefix(ui.Path, "/") {
			stats.Skipped++
			return nil
		}

		path, err := Join(dir, ui.Path)
		if err != nil {
			return err
		}

		if ui.Length == 0 {
			if err = os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf(`create directory "%s" error: %w`, path, err)
			}

			stats.Dirs++
			return nil
		}

		if err = extractFile(a, ui, path, buf, opts.ProgressBar); err != nil {
			return err
		}

		stats.Files++
		stats.Bytes += int64(ui.Length)

		sometimes.Do(func() {
			opts.Logger.Printf(`extracted %d files (%s) so far, latest "%s"`, stats.Files, humanize.Bytes(uint64(stats.Bytes)), ui.Path)
		})

		return nil
	})

	return stats, err
}

// Join returns the path under dir that the internal path maps to.
//
// Returns ErrUnsafePath if the internal path would escape dir.
func Join(dir, internalPath string) (string, error) {
	rel := strings.Trim(internalPath, "/")
	if rel == "" {
		return dir, nil
	}

	if rel = filepath.FromSlash(rel); !filepath.IsLocal(rel) {
		return "", fmt.Errorf(`%w: "%s"`, ErrUnsafePath, internalPath)
	}

	return filepath.Join(dir, rel), nil
}

// extractFile streams the object into a newly created file at path, then strips any ";" suffix from its name.
func extractFile(a Archive, ui chm.UnitInfo, path string, buf []byte, bar *progressbar.ProgressBar) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		// most likely the parent directory was not listed before the file.
		if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf(`create path to file "%s" error: %w`, path, err)
		}

		if f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644); err != nil {
			return fmt.Errorf(`create file "%s" error: %w`, path, err)
		}
	}

	var w io.Writer = f
	if bar != nil {
		w = io.MultiWriter(f, bar)
	}

	for offset := uint64(0); offset < ui.Length; {
		n, err := a.Retrieve(ui, buf[:min(uint64(len(buf)), ui.Length-offset)], offset)
		if err != nil && !errors.Is(err, io.EOF) {
			_ = f.Close()
			return fmt.Errorf(`read "%s" at offset %d error: %w`, ui.Path, offset, err)
		}
		if n <= 0 {
			_ = f.Close()
			return fmt.Errorf(`%w: "%s" ended at %d of %d bytes`, ErrShortRead, ui.Path, offset, ui.Length)
		}

		if _, err = w.Write(buf[:n]); err != nil {
			_ = f.Close()
			return fmt.Errorf(`write to file "%s" error: %w`, path, err)
		}

		offset += uint64(n)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf(`close file "%s" error: %w`, path, err)
	}

	return StripVersionSuffix(path)
}

// StripVersionSuffix renames the file at path to drop everything from the first ";" in its base name.
//
// A name without ";" is left alone.
func StripVersionSuffix(path string) error {
	dir, base := filepath.Split(path)
	i := strings.IndexByte(base, ';')
	if i < 0 {
		return nil
	}

	dst := filepath.Join(dir, base[:i])
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf(`rename "%s" to "%s" error: %w`, path, dst, err)
	}

	return nil
}
