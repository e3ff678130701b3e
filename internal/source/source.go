// Package source stages the archive named on the command line as a local CHM file.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/mholt/archives"
	"github.com/nguyengg/xchm/util"
)

// ErrNoCHM is returned if an archive does not contain any .chm file.
var ErrNoCHM = errors.New("no .chm file in archive")

// Options customises Stage.
type Options struct {
	// TempDir is where downloaded and unpacked files are written. Defaults to os.TempDir.
	TempDir string

	// S3Client is used to download s3:// sources. Defaults to the client configured for the bucket.
	S3Client manager.DownloadAPIClient

	// ExpectedBucketOwner is passed to S3 requests if non-empty.
	ExpectedBucketOwner string

	// Logger defaults to log.Default.
	Logger *log.Logger
}

// Staged is a local CHM file ready to be opened.
type Staged struct {
	// Name is the original argument.
	Name string
	// Path is the local CHM file.
	Path string

	cleanup []func() error
}

// Close removes the temporary files created by Stage.
func (s *Staged) Close() error {
	var errs []error
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		errs = append(errs, s.cleanup[i]())
	}
	s.cleanup = nil

	return errors.Join(errs...)
}

// Stage returns a local CHM file for name.
//
// Name may be a local path, or an S3 URI "s3://bucket/key" which is downloaded first. If the file is an archive such
// as .zip, .7z, .rar, or .tar.gz, the first .chm member is unpacked; if it is a compressed file such as .chm.gz, it
// is decompressed. Anything else is assumed to be a CHM file already.
//
// Caller must call Staged.Close upon a successful return to remove temporary files.
func Stage(ctx context.Context, name string, optFns ...func(*Options)) (*Staged, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Staged{Name: name, Path: name}

	if strings.HasPrefix(name, "s3://") {
		downloaded, err := download(ctx, name, opts)
		if err != nil {
			return nil, err
		}
		s.Path = downloaded
		s.cleanup = append(s.cleanup, removeFunc(downloaded))
	}

	if isCHM(s.Path) {
		return s, nil
	}

	unpacked, err := unpack(ctx, s.Path, opts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if unpacked != "" {
		s.Path = unpacked
		s.cleanup = append(s.cleanup, removeFunc(unpacked))
	}

	return s, nil
}

// unpack extracts the CHM file from the archive or compressed file at name.
//
// Returns empty string if name is neither.
func unpack(ctx context.Context, name string, opts *Options) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, name, f)
	if err != nil {
		// not something archives recognises; chm.Open will decide.
		return "", nil
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	switch v := format.(type) {
	case archives.Extractor:
		return extractCHM(ctx, v, f, name, opts)
	case archives.Decompressor:
		rc, err := v.OpenReader(f)
		if err != nil {
			return "", fmt.Errorf(`open "%s" as %s error: %w`, name, format.Extension(), err)
		}
		defer rc.Close()

		stem, _ := util.StemAndExt(name)
		return writeTemp(ctx, rc, opts.TempDir, stem+".chm")
	default:
		return "", nil
	}
}

var errFound = errors.New("found")

func extractCHM(ctx context.Context, ex archives.Extractor, f *os.File, name string, opts *Options) (out string, err error) {
	err = ex.Extract(ctx, f, func(ctx context.Context, fi archives.FileInfo) error {
		if fi.IsDir() || !isCHM(fi.NameInArchive) {
			return nil
		}

		src, err := fi.Open()
		if err != nil {
			return fmt.Errorf(`open "%s" in archive error: %w`, fi.NameInArchive, err)
		}
		defer src.Close()

		if out, err = writeTemp(ctx, src, opts.TempDir, path.Base(fi.NameInArchive)); err != nil {
			return err
		}

		opts.Logger.Printf(`unpacked "%s" from "%s"`, fi.NameInArchive, name)
		return errFound
	})

	switch {
	case out != "":
		// err is errFound, possibly wrapped by the extractor.
		return out, nil
	case err != nil:
		return "", fmt.Errorf(`extract from "%s" error: %w`, name, err)
	default:
		return "", fmt.Errorf(`%w: "%s"`, ErrNoCHM, name)
	}
}

// writeTemp copies src to a new temporary file whose name ends with the base name.
func writeTemp(ctx context.Context, src io.Reader, dir, base string) (string, error) {
	f, err := os.CreateTemp(dir, "xchm-*-"+base)
	if err != nil {
		return "", fmt.Errorf("create temp file error: %w", err)
	}

	if _, err = util.CopyBufferWithContext(ctx, f, src, nil); err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf(`write temp file "%s" error: %w`, f.Name(), err)
	}

	return f.Name(), nil
}

func isCHM(name string) bool {
	return strings.EqualFold(path.Ext(strings.ReplaceAll(name, "\\", "/")), ".chm")
}

func removeFunc(name string) func() error {
	return func() error {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
}
