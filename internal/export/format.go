package export

import (
	"fmt"
	"io"
	"strings"
)

// Format is the archive format of an exported book.
type Format int

const (
	FormatZstd Format = iota
	FormatZip
	FormatGzip
	FormatXz
)

// DefaultFormat is the default export format.
const DefaultFormat = FormatZstd

// ParseFormat parses a format name such as "zstd" or an extension such as ".tar.gz".
func ParseFormat(v string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(v), ".") {
	case "zstd", "zst", "tar.zst":
		return FormatZstd, nil
	case "zip":
		return FormatZip, nil
	case "gzip", "gz", "tar.gz", "tgz":
		return FormatGzip, nil
	case "xz", "tar.xz":
		return FormatXz, nil
	default:
		return 0, fmt.Errorf("unknown export format %q", v)
	}
}

func (f Format) String() string {
	switch f {
	case FormatZstd:
		return "zstd"
	case FormatZip:
		return "zip"
	case FormatGzip:
		return "gzip"
	case FormatXz:
		return "xz"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Ext returns the file extension, including the ".tar" part for tarballs.
func (f Format) Ext() string {
	switch f {
	case FormatZstd:
		return ".tar.zst"
	case FormatZip:
		return ".zip"
	case FormatGzip:
		return ".tar.gz"
	case FormatXz:
		return ".tar.xz"
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func (f Format) createArchiver(dst io.Writer, opts *Options) (archiver, error) {
	switch f {
	case FormatZstd:
		return newZstdArchiver(dst, opts)
	case FormatZip:
		return newZipArchiver(dst), nil
	case FormatGzip:
		return newGzipArchiver(dst)
	case FormatXz:
		return newXzArchiver(dst)
	default:
		return nil, fmt.Errorf("unknown format: %v", f)
	}
}
