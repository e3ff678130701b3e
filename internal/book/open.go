package book

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/nguyengg/xchm/chm"
	"github.com/nguyengg/xchm/fingerprint"
	"github.com/nguyengg/xchm/internal"
	"github.com/nguyengg/xchm/internal/bookinfo"
	"github.com/nguyengg/xchm/internal/bookmarks"
	"github.com/nguyengg/xchm/internal/config"
	"github.com/nguyengg/xchm/internal/extract"
	"github.com/nguyengg/xchm/internal/sysinfo"
)

var (
	// ErrArchiveOpen is returned if the archive cannot be opened or is not a CHM archive.
	ErrArchiveOpen = errors.New("open archive failed")
	// ErrFingerprint is returned if the archive cannot be read to compute its fingerprint.
	ErrFingerprint = errors.New("fingerprint archive failed")
	// ErrExtract is returned if extraction into the bookshelf fails.
	ErrExtract = errors.New("extract archive failed")
)

// Archive is an opened archive.
type Archive interface {
	extract.Archive
	sysinfo.Archive
	io.Closer
}

// Options customises Open.
type Options struct {
	// Root is the bookshelf root. Defaults to config.DefaultRoot.
	Root string

	// Fingerprint is the digest naming the extraction directory. Defaults to fingerprint.SHA256.
	Fingerprint fingerprint.Algorithm

	// VariableFont and FixedFont are the fonts of a book that does not have its own yet.
	// Default to config.DefaultVariableFont and config.DefaultFixedFont.
	VariableFont string
	FixedFont    string

	// SourcePath is what Book.SourcePath reports, such as the S3 URI a temporary copy was downloaded from. Defaults
	// to the name given to Open.
	SourcePath string

	// OpenArchive opens the archive for extraction. Defaults to chm.Open.
	OpenArchive func(name string) (Archive, error)

	// ShowProgress displays a progress bar on stderr while extracting.
	ShowProgress bool

	// Logger defaults to log.Default.
	Logger *log.Logger
}

func openCHM(name string) (Archive, error) {
	return chm.Open(name)
}

// Open opens the archive as a book.
//
// The archive is fingerprinted, and if the bookshelf already has a complete extraction directory for it, the book
// info saved there is used without opening the archive. Otherwise the archive is extracted, its metadata decoded and
// saved. The table of contents, index, and bookmarks are then loaded from the extraction directory.
//
// Caller should call Book.Close to persist changes.
func Open(ctx context.Context, name string, optFns ...func(*Options)) (*Book, error) {
	opts := &Options{
		Fingerprint:  fingerprint.SHA256,
		VariableFont: config.DefaultVariableFont,
		FixedFont:    config.DefaultFixedFont,
		OpenArchive:  openCHM,
	}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Root == "" {
		root, err := homedir.Expand(config.DefaultRoot)
		if err != nil {
			return nil, err
		}
		opts.Root = root
	}

	fp, err := fingerprint.File(ctx, name, opts.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFingerprint, err)
	}

	var (
		shelf  = Shelf{Root: opts.Root}
		logger = opts.Logger
		info   = bookinfo.Info{
			Encoding:     sysinfo.DefaultEncoding,
			VariableFont: opts.VariableFont,
			FixedFont:    opts.FixedFont,
		}
	)

	dir, ok, err := shelf.Lookup(fp)
	if err != nil {
		return nil, fmt.Errorf(`look up "%s" error: %w`, dir, err)
	}

	if ok {
		logger.Printf(`using extraction directory "%s"`, dir)

		if err = bookinfo.Load(dir, &info); err != nil {
			logger.Printf("%v; decoding metadata again", err)

			if info, err = redecode(name, info, opts); err != nil {
				return nil, err
			}
		}
	} else {
		if dir, info, err = extractBook(ctx, name, fp, shelf, info, opts); err != nil {
			return nil, err
		}
	}

	// older bookshelves recorded a missing table of contents as "(null)".
	for _, s := range []*string{&info.HHC, &info.HHK, &info.Home} {
		if strings.EqualFold(*s, "(null)") {
			*s = ""
		}
	}
	if info.Encoding == "" {
		info.Encoding = sysinfo.DefaultEncoding
	}

	source := name
	if opts.SourcePath != "" {
		source = opts.SourcePath
	}

	b := &Book{
		source: source,
		dir:    dir,
		info:   info,
		logger: logger,
	}

	b.loadNavigation()

	if b.bookmarks, err = bookmarks.Load(dir); err != nil {
		logger.Printf("%v", err)
		b.bookmarks = &bookmarks.List{}
	}

	return b, nil
}

// extractBook extracts the archive into a staging directory, decodes and saves its metadata, then moves the staging
// directory into place.
//
// A failed extraction leaves the staging directory behind for Shelf.Prune.
func extractBook(ctx context.Context, name, fp string, shelf Shelf, info bookinfo.Info, opts *Options) (string, bookinfo.Info, error) {
	logger := opts.Logger

	a, err := opts.OpenArchive(name)
	if err != nil {
		return "", info, fmt.Errorf("%w: %w", ErrArchiveOpen, err)
	}
	defer a.Close()

	staging, err := shelf.stage(fp)
	if err != nil {
		return "", info, fmt.Errorf("%w: %w", ErrExtract, err)
	}

	stats, err := extract.Extract(ctx, a, staging, func(o *extract.Options) {
		o.Logger = logger

		if opts.ShowProgress {
			if _, size, err := extract.Size(a); err == nil {
				o.ProgressBar = internal.DefaultBytes(size, "extracting")
			}
		}
	})
	if err != nil {
		return "", info, fmt.Errorf(`%w: extract to "%s" error: %w`, ErrExtract, staging, err)
	}

	logger.Printf("extracted %d files and %d directories", stats.Files, stats.Dirs)

	info = decodeInfo(a, info, logger)
	if err = bookinfo.Save(staging, info); err != nil {
		logger.Printf("%v", err)
	}

	dir, err := shelf.commit(staging, fp)
	if err != nil {
		return "", info, fmt.Errorf("%w: %w", ErrExtract, err)
	}

	return dir, info, nil
}

// redecode recovers the metadata of an extraction directory whose book info is missing.
func redecode(name string, info bookinfo.Info, opts *Options) (bookinfo.Info, error) {
	a, err := opts.OpenArchive(name)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrArchiveOpen, err)
	}
	defer a.Close()

	return decodeInfo(a, info, opts.Logger), nil
}

func decodeInfo(a sysinfo.Archive, info bookinfo.Info, logger *log.Logger) bookinfo.Info {
	v := sysinfo.Decode(a, func(o *sysinfo.Options) {
		o.Encoding = info.Encoding
		o.Logger = logger
	})

	info.HHC = v.HHC
	info.HHK = v.HHK
	info.Home = v.Home
	info.Title = v.Title
	info.Encoding = v.Encoding

	if v.Font != "" {
		logger.Printf("ignoring font hint %q", v.Font)
	}

	return info
}
