package chm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

var (
	itsfSigBytes = []byte("ITSF")
	itspSigBytes = []byte("ITSP")
	pmglSigBytes = []byte("PMGL")
)

const (
	itsfV2Len = 0x58
	itsfV3Len = 0x60
	itspLen   = 0x54
	pmglLen   = 0x14
)

// itsfHeader is the fixed-size part of the ITSF header shared by versions 2 and 3.
type itsfHeader struct {
	Signature     [4]byte
	Version       int32
	HeaderLen     int32
	Unknown000c   int32
	LastModified  uint32
	LangID        uint32
	DirUUID       [16]byte
	StreamUUID    [16]byte
	UnknownOffset uint64
	UnknownLen    uint64
	DirOffset     uint64
	DirLen        uint64
}

// itspHeader is the directory header found at itsfHeader.DirOffset.
type itspHeader struct {
	Signature     [4]byte
	Version       int32
	HeaderLen     int32
	Unknown000c   int32
	BlockLen      uint32
	BlockIdxIntvl int32
	IndexDepth    int32
	IndexRoot     int32
	IndexHead     int32
	Unknown0024   int32
	NumBlocks     uint32
	Unknown002c   int32
	LangID        uint32
	SystemUUID    [16]byte
	Unknown0044   [16]byte
}

// pmglHeader starts every listing chunk.
type pmglHeader struct {
	Signature [4]byte
	FreeSpace uint32
	Unknown   uint32
	BlockPrev int32
	BlockNext int32
}

// layout describes where the directory chunks and the uncompressed content section live.
type layout struct {
	dirOffset  int64
	dirLen     int64
	dataOffset int64
	blockLen   int64
	numBlocks  int64
	indexHead  int64
	langID     uint32
}

// readLayout parses the ITSF and ITSP headers.
func readLayout(r io.ReaderAt, size int64) (l layout, err error) {
	b := make([]byte, itsfV3Len)
	n, err := r.ReadAt(b, 0)
	if n < itsfV2Len {
		if err == nil || err == io.EOF {
			return l, fmt.Errorf("%w: file too small (%d bytes)", ErrNotCHM, n)
		}

		return l, fmt.Errorf("read ITSF header error: %w", err)
	}

	if !bytes.Equal(b[:4], itsfSigBytes) {
		return l, fmt.Errorf("%w: mismatched signature, got 0x%x, expected 0x%x", ErrNotCHM, b[:4], itsfSigBytes)
	}

	var h itsfHeader
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return l, fmt.Errorf("unmarshal ITSF header error: %w", err)
	}

	switch {
	case h.Version == 2 && h.HeaderLen >= itsfV2Len:
		l.dataOffset = int64(h.DirOffset + h.DirLen)
	case h.Version == 3 && h.HeaderLen >= itsfV3Len && n >= itsfV3Len:
		l.dataOffset = int64(binary.LittleEndian.Uint64(b[itsfV2Len:]))
	default:
		return l, fmt.Errorf("%w: unsupported ITSF version %d (header length %d)", ErrNotCHM, h.Version, h.HeaderLen)
	}

	if h.DirOffset+h.DirLen > uint64(size) || l.dataOffset > size {
		return l, fmt.Errorf("%w: directory [%d, +%d) lies outside file of %d bytes", ErrCorrupt, h.DirOffset, h.DirLen, size)
	}

	b = make([]byte, itspLen)
	if _, err = r.ReadAt(b, int64(h.DirOffset)); err != nil {
		return l, fmt.Errorf("read ITSP header error: %w", err)
	}
	if !bytes.Equal(b[:4], itspSigBytes) {
		return l, fmt.Errorf("%w: mismatched ITSP signature, got 0x%x", ErrCorrupt, b[:4])
	}

	var p itspHeader
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, &p); err != nil {
		return l, fmt.Errorf("unmarshal ITSP header error: %w", err)
	}
	if p.HeaderLen < itspLen || p.BlockLen < pmglLen {
		return l, fmt.Errorf("%w: invalid ITSP header (header length %d, block length %d)", ErrCorrupt, p.HeaderLen, p.BlockLen)
	}

	l.dirOffset = int64(h.DirOffset) + int64(p.HeaderLen)
	l.dirLen = int64(h.DirLen) - int64(p.HeaderLen)
	l.blockLen = int64(p.BlockLen)
	l.numBlocks = int64(p.NumBlocks)
	if maxBlocks := l.dirLen / l.blockLen; l.numBlocks > maxBlocks {
		l.numBlocks = maxBlocks
	}
	l.indexHead = int64(p.IndexHead)
	l.langID = h.LangID

	return l, nil
}

// readEntries collects every directory entry from the PMGL listing chunks.
//
// The chunks are visited by following the block_next chain starting at the index head. If the chain is broken (a
// chunk without PMGL signature, a cycle, an out-of-range pointer), every chunk is scanned in order instead so that a
// damaged index does not hide entries that are still readable.
func readEntries(r io.ReaderAt, l layout) ([]UnitInfo, error) {
	chunk := make([]byte, l.blockLen)
	read := func(i int64) (pmglHeader, bool, error) {
		var h pmglHeader
		if _, err := r.ReadAt(chunk, l.dirOffset+i*l.blockLen); err != nil && err != io.EOF {
			return h, false, fmt.Errorf("read directory chunk %d error: %w", i, err)
		}
		if !bytes.Equal(chunk[:4], pmglSigBytes) {
			return h, false, nil
		}
		_ = binary.Read(bytes.NewReader(chunk[:pmglLen]), binary.LittleEndian, &h)
		return h, true, nil
	}

	var (
		entries = make([]UnitInfo, 0)
		visited = make(map[int64]bool)
		broken  bool
	)

	for i := l.indexHead; i != -1; {
		if i < 0 || i >= l.numBlocks || visited[i] {
			broken = true
			break
		}
		visited[i] = true

		h, ok, err := read(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			broken = true
			break
		}

		if entries, err = parsePMGL(chunk, h, entries); err != nil {
			return nil, fmt.Errorf("parse directory chunk %d error: %w", i, err)
		}

		i = int64(h.BlockNext)
	}

	if !broken {
		return entries, nil
	}

	entries = entries[:0]
	for i := int64(0); i < l.numBlocks; i++ {
		h, ok, err := read(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if entries, err = parsePMGL(chunk, h, entries); err != nil {
			return nil, fmt.Errorf("parse directory chunk %d error: %w", i, err)
		}
	}

	return entries, nil
}

// parsePMGL appends the entries of one listing chunk to dst.
func parsePMGL(chunk []byte, h pmglHeader, dst []UnitInfo) ([]UnitInfo, error) {
	end := len(chunk) - int(h.FreeSpace)
	if end < pmglLen || end > len(chunk) {
		return dst, fmt.Errorf("%w: free space %d does not fit chunk of %d bytes", ErrCorrupt, h.FreeSpace, len(chunk))
	}

	d := &decoder{b: chunk[:end], pos: pmglLen}
	for d.pos < end {
		n := d.encint()
		name := d.bytes(n)
		space := d.encint()
		start := d.encint()
		length := d.encint()
		if d.err != nil {
			return dst, fmt.Errorf("%w: truncated entry at offset %d", ErrCorrupt, d.pos)
		}

		ui := UnitInfo{
			Path:   string(name),
			Space:  int(space),
			Start:  start,
			Length: length,
		}
		ui.Flags = classify(ui.Path)
		dst = append(dst, ui)
	}

	return dst, nil
}

// classify computes the enumeration flags of an entry from its path the same way chmlib does.
func classify(path string) (f Flags) {
	if strings.HasSuffix(path, "/") {
		f |= EnumerateDirs
	} else {
		f |= EnumerateFiles
	}

	switch {
	case !strings.HasPrefix(path, "/"):
		f |= EnumerateMeta
	case strings.HasPrefix(path, "/#"), strings.HasPrefix(path, "/$"):
		f |= EnumerateSpecial
	default:
		f |= EnumerateNormal
	}

	return
}

// decoder reads ENCINT-encoded values and raw bytes from a chunk, remembering the first error.
type decoder struct {
	b   []byte
	pos int
	err error
}

// encint decodes a variable-length big-endian integer where every byte but the last has its high bit set.
func (d *decoder) encint() (v uint64) {
	for i := 0; ; i++ {
		if d.err != nil {
			return 0
		}
		if d.pos >= len(d.b) || i >= 10 {
			d.err = io.ErrUnexpectedEOF
			return 0
		}

		c := d.b[d.pos]
		d.pos++
		v = v<<7 | uint64(c&0x7f)
		if c&0x80 == 0 {
			return v
		}
	}
}

func (d *decoder) bytes(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.b)-d.pos) {
		d.err = io.ErrUnexpectedEOF
		return nil
	}

	b := d.b[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b
}
