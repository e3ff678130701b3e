package chm

import "errors"

var (
	// ErrNotCHM is returned by Open if the file does not start with a valid ITSF header.
	ErrNotCHM = errors.New("chm: not an ITSF file")

	// ErrNotFound is returned by File.Resolve if no object exists at the given path.
	ErrNotFound = errors.New("chm: object not found")

	// ErrCorrupt is returned when a directory chunk or compressed section cannot be parsed.
	//
	// It is always wrapped with more details about what went wrong.
	ErrCorrupt = errors.New("chm: corrupt archive")

	// ErrClosed is returned when using a File after it was closed.
	ErrClosed = errors.New("chm: file already closed")
)
