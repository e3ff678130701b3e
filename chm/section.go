package chm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	contentPath     = "::DataSpace/Storage/MSCompressed/Content"
	controlDataPath = "::DataSpace/Storage/MSCompressed/ControlData"
	resetTablePath  = "::DataSpace/Storage/MSCompressed/Transform/{7FC28940-9D31-11D0-9B27-00A0C91E9C7C}/InstanceData/ResetTable"

	// lzxFrameSize is the unit in which version 2 control data expresses reset interval and window size.
	lzxFrameSize = 0x8000

	// defaultCacheBlocks is the number of decoded blocks kept in memory.
	defaultCacheBlocks = 8
)

var lzxcSigBytes = []byte("LZXC")

// controlData is the LZXC control data object of the MSCompressed section.
type controlData struct {
	Size            uint32
	Signature       [4]byte
	Version         uint32
	ResetInterval   uint32
	WindowSize      uint32
	WindowsPerReset uint32
	Unknown0018     uint32
}

// resetTable is the header of the reset table object; block offsets follow at TableOffset.
type resetTable struct {
	Version         uint32
	BlockCount      uint32
	Unknown0008     uint32
	TableOffset     uint32
	UncompressedLen uint64
	CompressedLen   uint64
	BlockLen        uint64
}

// lzxSection reads the MSCompressed section (section 1) by decoding LZX blocks on demand.
type lzxSection struct {
	f       *File
	content UnitInfo

	blockLen        uint64
	uncompressedLen uint64
	compressedLen   uint64
	offsets         []uint64
	resetBlocks     uint64

	dec   *lzxDecoder
	last  int64
	in    []byte
	cache *lru.Cache[uint64, []byte]
}

func newLZXSection(f *File) (*lzxSection, error) {
	content, err := f.Resolve(contentPath)
	if err != nil {
		return nil, fmt.Errorf("%w: missing compressed content: %w", ErrCorrupt, err)
	}
	if content.Space != 0 {
		return nil, fmt.Errorf("%w: compressed content is not stored uncompressed", ErrCorrupt)
	}

	cd, err := f.readControlData()
	if err != nil {
		return nil, err
	}

	rt, offsets, err := f.readResetTable()
	if err != nil {
		return nil, err
	}

	windowBits := 0
	for w := cd.WindowSize; w > 1; w >>= 1 {
		windowBits++
	}
	if cd.WindowSize != 1<<windowBits {
		return nil, fmt.Errorf("%w: LZX window size %d is not a power of two", ErrCorrupt, cd.WindowSize)
	}

	resetBlocks := uint64(cd.ResetInterval) / uint64(cd.WindowSize/2) * uint64(cd.WindowsPerReset)
	if resetBlocks == 0 {
		return nil, fmt.Errorf("%w: invalid LZX reset interval %d", ErrCorrupt, cd.ResetInterval)
	}

	dec, err := newLZXDecoder(windowBits)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[uint64, []byte](defaultCacheBlocks)
	if err != nil {
		return nil, fmt.Errorf("create block cache error: %w", err)
	}

	return &lzxSection{
		f:               f,
		content:         content,
		blockLen:        rt.BlockLen,
		uncompressedLen: rt.UncompressedLen,
		compressedLen:   rt.CompressedLen,
		offsets:         offsets,
		resetBlocks:     resetBlocks,
		dec:             dec,
		last:            -1,
		cache:           cache,
	}, nil
}

func (f *File) readControlData() (cd controlData, err error) {
	ui, err := f.Resolve(controlDataPath)
	if err != nil {
		return cd, fmt.Errorf("%w: missing LZX control data: %w", ErrCorrupt, err)
	}

	b, err := f.readAll(ui, 0x1c)
	if err != nil {
		return cd, fmt.Errorf("read LZX control data error: %w", err)
	}
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, &cd); err != nil {
		return cd, fmt.Errorf("unmarshal LZX control data error: %w", err)
	}
	if !bytes.Equal(cd.Signature[:], lzxcSigBytes) {
		return cd, fmt.Errorf("%w: mismatched LZX control data signature, got 0x%x", ErrCorrupt, cd.Signature)
	}

	if cd.Version == 2 {
		cd.ResetInterval *= lzxFrameSize
		cd.WindowSize *= lzxFrameSize
	}
	if cd.WindowSize <= 1 || cd.ResetInterval == 0 || cd.ResetInterval%(cd.WindowSize/2) != 0 {
		return cd, fmt.Errorf("%w: invalid LZX control data (window %d, reset interval %d)", ErrCorrupt, cd.WindowSize, cd.ResetInterval)
	}

	return cd, nil
}

func (f *File) readResetTable() (rt resetTable, offsets []uint64, err error) {
	ui, err := f.Resolve(resetTablePath)
	if err != nil {
		return rt, nil, fmt.Errorf("%w: missing LZX reset table: %w", ErrCorrupt, err)
	}

	b, err := f.readAll(ui, 0x28)
	if err != nil {
		return rt, nil, fmt.Errorf("read LZX reset table error: %w", err)
	}
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, &rt); err != nil {
		return rt, nil, fmt.Errorf("unmarshal LZX reset table error: %w", err)
	}
	if rt.BlockLen == 0 || rt.BlockCount == 0 {
		return rt, nil, fmt.Errorf("%w: empty LZX reset table", ErrCorrupt)
	}

	end := uint64(rt.TableOffset) + uint64(rt.BlockCount)*8
	if end > uint64(len(b)) {
		return rt, nil, fmt.Errorf("%w: LZX reset table lists %d blocks but has only %d bytes", ErrCorrupt, rt.BlockCount, len(b))
	}

	offsets = make([]uint64, rt.BlockCount)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(b[int(rt.TableOffset)+i*8:])
	}

	return rt, offsets, nil
}

// readAll reads an entire object, requiring at least minLen bytes.
func (f *File) readAll(ui UnitInfo, minLen int) ([]byte, error) {
	if ui.Length < uint64(minLen) {
		return nil, fmt.Errorf("%w: %s has %d bytes, expected at least %d", ErrCorrupt, ui.Path, ui.Length, minLen)
	}

	b := make([]byte, ui.Length)
	n, err := f.Retrieve(ui, b, 0)
	if n != len(b) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return b, nil
}

// read fills p with uncompressed bytes of the section starting at off.
func (s *lzxSection) read(p []byte, off uint64) (n int, err error) {
	for n < len(p) {
		if off >= s.uncompressedLen {
			return n, io.EOF
		}

		i := off / s.blockLen
		b, err := s.block(i)
		if err != nil {
			return n, err
		}

		within := off % s.blockLen
		if within >= uint64(len(b)) {
			return n, fmt.Errorf("%w: block %d decoded to only %d bytes", ErrCorrupt, i, len(b))
		}

		m := copy(p[n:], b[within:])
		n += m
		off += uint64(m)
	}

	return n, nil
}

// block returns the decoded content of block i.
//
// The decoder state depends on every block since the preceding reset point, so those are decoded first unless the
// decoder just finished the block right before i.
func (s *lzxSection) block(i uint64) ([]byte, error) {
	if b, ok := s.cache.Get(i); ok {
		return b, nil
	}

	if i >= uint64(len(s.offsets)) {
		return nil, fmt.Errorf("%w: block %d out of range (%d blocks)", ErrCorrupt, i, len(s.offsets))
	}

	first := i - i%s.resetBlocks
	if s.last >= 0 && uint64(s.last) >= first && uint64(s.last) < i {
		first = uint64(s.last) + 1
	}

	var b []byte
	for j := first; j <= i; j++ {
		if j%s.resetBlocks == 0 {
			s.dec.reset()
		}

		var err error
		if b, err = s.decode(j); err != nil {
			s.last = -1
			return nil, fmt.Errorf("%w: decode block %d error: %w", ErrCorrupt, j, err)
		}

		s.last = int64(j)
		s.cache.Add(j, b)
	}

	return b, nil
}

func (s *lzxSection) decode(i uint64) ([]byte, error) {
	start := s.offsets[i]
	end := s.compressedLen
	if i+1 < uint64(len(s.offsets)) {
		end = s.offsets[i+1]
	}
	if end < start || end > s.content.Length {
		return nil, fmt.Errorf("compressed range [%d, %d) is invalid", start, end)
	}

	if n := int(end - start); cap(s.in) < n {
		s.in = make([]byte, n)
	} else {
		s.in = s.in[:n]
	}

	if n, err := s.f.Retrieve(s.content, s.in, start); n != len(s.in) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	out := make([]byte, min(s.blockLen, s.uncompressedLen-i*s.blockLen))
	if err := s.dec.decompress(s.in, out); err != nil {
		return nil, err
	}

	return out, nil
}
