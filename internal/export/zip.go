package export

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"io/fs"
)

type zipArchiver struct {
	zw *zip.Writer
	fw io.Writer // nil until AddFile is called at least once.
}

func (c *zipArchiver) AddFile(fi fs.FileInfo, name string) (err error) {
	fh, err := zip.FileInfoHeader(fi)
	if err != nil {
		return fmt.Errorf(`create zip header for "%s" error: %w`, name, err)
	}
	fh.Name = name
	fh.Method = zip.Deflate

	if c.fw, err = c.zw.CreateHeader(fh); err != nil {
		return fmt.Errorf(`write zip header for "%s" error: %w`, name, err)
	}

	return nil
}

func (c *zipArchiver) Write(p []byte) (n int, err error) {
	if c.fw == nil {
		return 0, fmt.Errorf("AddFile has not been called")
	}

	return c.fw.Write(p)
}

func (c *zipArchiver) Close() error {
	return c.zw.Close()
}

func newZipArchiver(dst io.Writer) *zipArchiver {
	zw := zip.NewWriter(dst)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	return &zipArchiver{zw: zw}
}

var _ archiver = &zipArchiver{}
