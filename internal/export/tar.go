package export

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type tarArchiver struct {
	wc io.WriteCloser
	tw *tar.Writer
}

func (ta *tarArchiver) AddFile(fi fs.FileInfo, name string) error {
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return fmt.Errorf(`create tar header for "%s" error: %w`, name, err)
	}
	hdr.Name = name

	if err = ta.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf(`write tar header for "%s" error: %w`, name, err)
	}

	return nil
}

func (ta *tarArchiver) Write(p []byte) (int, error) {
	return ta.tw.Write(p)
}

func (ta *tarArchiver) Close() (err error) {
	if err = ta.tw.Close(); err != nil {
		return fmt.Errorf("close tar writer error: %w", err)
	}

	if err = ta.wc.Close(); err != nil {
		return fmt.Errorf("close compressor error: %w", err)
	}

	return nil
}

func newTarArchiver(wc io.WriteCloser) *tarArchiver {
	return &tarArchiver{wc: wc, tw: tar.NewWriter(wc)}
}

func newZstdArchiver(dst io.Writer, opts *Options) (archiver, error) {
	zopts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedBestCompression)}
	if opts.MaxConcurrency > 0 {
		zopts = append(zopts, zstd.WithEncoderConcurrency(opts.MaxConcurrency))
	}

	w, err := zstd.NewWriter(dst, zopts...)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer error: %w", err)
	}

	return newTarArchiver(w), nil
}

func newGzipArchiver(dst io.Writer) (archiver, error) {
	w, err := gzip.NewWriterLevel(dst, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer error: %w", err)
	}

	return newTarArchiver(w), nil
}

func newXzArchiver(dst io.Writer) (archiver, error) {
	w, err := xz.NewWriter(dst)
	if err != nil {
		return nil, fmt.Errorf("create xz writer error: %w", err)
	}

	return newTarArchiver(w), nil
}

var _ archiver = &tarArchiver{}
