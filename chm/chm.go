package chm

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Flags classify directory entries and select which ones File.Enumerate visits.
type Flags int

const (
	// EnumerateNormal selects content objects such as "/index.html".
	EnumerateNormal Flags = 1 << iota
	// EnumerateMeta selects objects outside the root such as "::DataSpace/NameList".
	EnumerateMeta
	// EnumerateSpecial selects control objects such as "/#SYSTEM" and "/$WWKeywordLinks/".
	EnumerateSpecial
	// EnumerateFiles selects entries not ending with "/".
	EnumerateFiles
	// EnumerateDirs selects entries ending with "/".
	EnumerateDirs

	// EnumerateAll selects every entry.
	EnumerateAll = EnumerateNormal | EnumerateMeta | EnumerateSpecial | EnumerateFiles | EnumerateDirs
)

const (
	typeMask   = EnumerateNormal | EnumerateMeta | EnumerateSpecial
	filterMask = EnumerateFiles | EnumerateDirs
)

// UnitInfo describes one internal object of the archive.
type UnitInfo struct {
	// Path is the internal path, e.g. "/html/index.html" or "::DataSpace/NameList".
	Path string
	// Space is the content section: 0 for uncompressed, 1 for MSCompressed.
	Space int
	// Start is the offset of the object within its section.
	Start uint64
	// Length is the uncompressed length of the object. Directories have zero length.
	Length uint64
	// Flags classifies the entry; see EnumerateNormal and friends.
	Flags Flags
}

// File is an opened CHM archive.
//
// File is not safe for concurrent use.
type File struct {
	r      io.ReaderAt
	closer io.Closer
	l      layout

	entries []UnitInfo
	exact   map[string]int
	folded  map[string]int

	lzx    *lzxSection
	lzxErr error
	closed bool
}

// Open opens the named CHM file.
//
// Caller is responsible for calling File.Close upon a successful return.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf(`stat file "%s" error: %w`, name, err)
	}

	c, err := NewReader(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	c.closer = f
	return c, nil
}

// NewReader reads the directory of a CHM archive of the given size.
//
// The returned File reads content lazily from r, which must stay valid until File.Close. Closing the File does not
// close r.
func NewReader(r io.ReaderAt, size int64) (*File, error) {
	l, err := readLayout(r, size)
	if err != nil {
		return nil, err
	}

	entries, err := readEntries(r, l)
	if err != nil {
		return nil, err
	}

	f := &File{
		r:       r,
		l:       l,
		entries: entries,
		exact:   make(map[string]int, len(entries)),
		folded:  make(map[string]int, len(entries)),
	}
	for i, ui := range entries {
		if _, ok := f.exact[ui.Path]; !ok {
			f.exact[ui.Path] = i
		}
		k := strings.ToLower(ui.Path)
		if _, ok := f.folded[k]; !ok {
			f.folded[k] = i
		}
	}

	return f, nil
}

// LangID returns the language identifier recorded in the ITSF header.
func (f *File) LangID() uint32 {
	return f.l.langID
}

// Resolve finds the object at the given internal path.
//
// Lookup is exact first, then case-insensitive since CHM paths are. Returns ErrNotFound if no such object exists.
func (f *File) Resolve(path string) (UnitInfo, error) {
	if f.closed {
		return UnitInfo{}, ErrClosed
	}

	if i, ok := f.exact[path]; ok {
		return f.entries[i], nil
	}
	if i, ok := f.folded[strings.ToLower(path)]; ok {
		return f.entries[i], nil
	}

	return UnitInfo{}, fmt.Errorf(`%w: "%s"`, ErrNotFound, path)
}

// Retrieve reads up to len(buf) bytes of the object starting at offset.
//
// Retrieve returns io.EOF if offset is at or past the end of the object. Fewer than len(buf) bytes without error
// means the object ended.
func (f *File) Retrieve(ui UnitInfo, buf []byte, offset uint64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if offset >= ui.Length {
		return 0, io.EOF
	}

	if remaining := ui.Length - offset; uint64(len(buf)) > remaining {
		buf = buf[:remaining]
	}

	switch ui.Space {
	case 0:
		n, err := f.r.ReadAt(buf, f.l.dataOffset+int64(ui.Start+offset))
		if n == len(buf) {
			return n, nil
		}
		if err == nil || err == io.EOF {
			err = fmt.Errorf(`%w: "%s" extends past the end of the file`, ErrCorrupt, ui.Path)
		}
		return n, err

	case 1:
		if f.lzx == nil && f.lzxErr == nil {
			f.lzx, f.lzxErr = newLZXSection(f)
		}
		if f.lzxErr != nil {
			return 0, f.lzxErr
		}

		n, err := f.lzx.read(buf, ui.Start+offset)
		if err == io.EOF {
			err = fmt.Errorf(`%w: "%s" extends past the end of the compressed section`, ErrCorrupt, ui.Path)
		}
		return n, err

	default:
		return 0, fmt.Errorf(`%w: "%s" is in unknown section %d`, ErrCorrupt, ui.Path, ui.Space)
	}
}

// Enumerate calls fn for every entry matching what, in directory order.
//
// An entry matches if it has one of the type flags (EnumerateNormal, EnumerateMeta, EnumerateSpecial) in what and,
// when what has EnumerateFiles or EnumerateDirs, one of those as well. If fn returns fs.SkipAll, enumeration stops
// and Enumerate returns nil. Any other error from fn stops enumeration and is returned as-is.
func (f *File) Enumerate(what Flags, fn func(UnitInfo) error) error {
	if f.closed {
		return ErrClosed
	}

	for _, ui := range f.entries {
		if ui.Flags&what&typeMask == 0 {
			continue
		}
		if filter := what & filterMask; filter != 0 && ui.Flags&filter == 0 {
			continue
		}

		if err := fn(ui); err != nil {
			if errors.Is(err, fs.SkipAll) {
				return nil
			}
			return err
		}
	}

	return nil
}

// Close releases the underlying file if the File was created by Open.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}

	f.closed = true
	f.lzx = nil
	if f.closer != nil {
		return f.closer.Close()
	}

	return nil
}
