package chm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LZX constants as laid out by the Microsoft LZX format that CHM uses for its MSCompressed section.
const (
	lzxMinMatch            = 2
	lzxNumChars            = 256
	lzxNumPrimaryLengths   = 7
	lzxNumSecondaryLengths = 249

	lzxBlockVerbatim     = 1
	lzxBlockAligned      = 2
	lzxBlockUncompressed = 3

	lzxPretreeSymbols = 20
	lzxPretreeBits    = 6
	lzxMainSymbols    = lzxNumChars + 50*8
	lzxMainBits       = 12
	lzxLengthSymbols  = lzxNumSecondaryLengths + 1
	lzxLengthBits     = 12
	lzxAlignedSymbols = 8
	lzxAlignedBits    = 7

	lzxMinWindowBits = 15
	lzxMaxWindowBits = 21
)

var (
	errLZXIllegalData = errors.New("illegal LZX data")
	errLZXTable       = errors.New("invalid LZX huffman table")
)

var lzxExtraBits, lzxPositionBase [51]uint32

func init() {
	for i, j := 0, uint32(0); i < 50; i += 2 {
		lzxExtraBits[i] = j
		lzxExtraBits[i+1] = j
		if i != 0 && j < 17 {
			j++
		}
	}
	lzxExtraBits[50] = 17

	for i, j := 0, uint32(0); i < 51; i++ {
		lzxPositionBase[i] = j
		j += 1 << lzxExtraBits[i]
	}
}

// bitReader reads the LZX bitstream: 16-bit little-endian words consumed most significant bit first.
//
// Reading past the end of input yields zero bits; callers check pos against len(in) where it matters.
type bitReader struct {
	in   []byte
	pos  int
	buf  uint32
	left int
}

func (b *bitReader) reset(in []byte) {
	b.in, b.pos = in, 0
	b.realign()
}

func (b *bitReader) realign() {
	b.buf, b.left = 0, 0
}

func (b *bitReader) ensure(n int) {
	for b.left < n {
		var lo, hi uint32
		if b.pos < len(b.in) {
			lo = uint32(b.in[b.pos])
		}
		if b.pos+1 < len(b.in) {
			hi = uint32(b.in[b.pos+1])
		}

		b.buf |= (hi<<8 | lo) << (16 - b.left)
		b.left += 16
		b.pos += 2
	}
}

func (b *bitReader) peek(n int) uint32 {
	return b.buf >> (32 - n)
}

func (b *bitReader) remove(n int) {
	b.buf <<= n
	b.left -= n
}

func (b *bitReader) read(n int) uint32 {
	if n == 0 {
		return 0
	}

	b.ensure(n)
	v := b.peek(n)
	b.remove(n)
	return v
}

// huffTable is a canonical huffman decoding table with direct lookup for codes up to bits long and a binary tree
// appended to the table for longer codes.
type huffTable struct {
	bits  int
	lens  []byte
	table []uint16
}

func newHuffTable(symbols, bits int) huffTable {
	return huffTable{
		bits:  bits,
		lens:  make([]byte, symbols),
		table: make([]uint16, (1<<bits)+symbols*2),
	}
}

func (h *huffTable) build() error {
	var (
		nsyms     = len(h.lens)
		pos       uint32
		tableMask uint32 = 1 << h.bits
		bitMask          = tableMask >> 1
		nextSym          = bitMask
		bitNum           = 1
	)

	for ; bitNum <= h.bits; bitNum++ {
		for sym := 0; sym < nsyms; sym++ {
			if int(h.lens[sym]) != bitNum {
				continue
			}

			leaf := pos
			if pos += bitMask; pos > tableMask {
				return errLZXTable
			}
			for fill := bitMask; fill > 0; fill-- {
				h.table[leaf] = uint16(sym)
				leaf++
			}
		}
		bitMask >>= 1
	}

	if pos != tableMask {
		for sym := pos; sym < tableMask; sym++ {
			h.table[sym] = 0
		}

		pos <<= 16
		tableMask <<= 16
		bitMask = 1 << 15

		for ; bitNum <= 16; bitNum++ {
			for sym := 0; sym < nsyms; sym++ {
				if int(h.lens[sym]) != bitNum {
					continue
				}

				leaf := pos >> 16
				for fill := 0; fill < bitNum-h.bits; fill++ {
					if h.table[leaf] == 0 {
						if int(nextSym<<1)+1 >= len(h.table) {
							return errLZXTable
						}
						h.table[nextSym<<1] = 0
						h.table[nextSym<<1+1] = 0
						h.table[leaf] = uint16(nextSym)
						nextSym++
					}

					leaf = uint32(h.table[leaf]) << 1
					if (pos>>(15-fill))&1 != 0 {
						leaf++
					}
				}
				h.table[leaf] = uint16(sym)

				if pos += bitMask; pos > tableMask {
					return errLZXTable
				}
			}
			bitMask >>= 1
		}
	}

	if pos == tableMask {
		return nil
	}

	// an empty table is fine as long as nothing tries to decode with it.
	for _, l := range h.lens {
		if l != 0 {
			return errLZXTable
		}
	}

	return nil
}

// lzxDecoder holds the state that persists between frames until the next reset.
type lzxDecoder struct {
	window       []byte
	windowSize   int
	windowPos    int
	mainElements int

	r0, r1, r2 uint32

	headerRead     bool
	blockType      int
	blockLength    int
	blockRemaining int
	overrun        int

	framesRead    int
	intelFileSize int32
	intelCurPos   int32
	intelStarted  bool

	br      bitReader
	pretree huffTable
	main    huffTable
	length  huffTable
	aligned huffTable
}

func newLZXDecoder(windowBits int) (*lzxDecoder, error) {
	if windowBits < lzxMinWindowBits || windowBits > lzxMaxWindowBits {
		return nil, fmt.Errorf("%w: unsupported LZX window of 2^%d bytes", ErrCorrupt, windowBits)
	}

	var slots int
	switch windowBits {
	case 20:
		slots = 42
	case 21:
		slots = 50
	default:
		slots = windowBits << 1
	}

	d := &lzxDecoder{
		window:       make([]byte, 1<<windowBits),
		windowSize:   1 << windowBits,
		mainElements: lzxNumChars + slots<<3,
		pretree:      newHuffTable(lzxPretreeSymbols, lzxPretreeBits),
		main:         newHuffTable(lzxMainSymbols, lzxMainBits),
		length:       newHuffTable(lzxLengthSymbols, lzxLengthBits),
		aligned:      newHuffTable(lzxAlignedSymbols, lzxAlignedBits),
	}
	d.reset()

	return d, nil
}

// reset prepares the decoder for the first frame following a reset point.
func (d *lzxDecoder) reset() {
	d.r0, d.r1, d.r2 = 1, 1, 1
	d.headerRead = false
	d.framesRead = 0
	d.blockType = 0
	d.blockLength = 0
	d.blockRemaining = 0
	d.overrun = 0
	d.intelCurPos = 0
	d.intelStarted = false
	d.windowPos = 0
	clear(d.main.lens)
	clear(d.length.lens)
}

func (d *lzxDecoder) readSym(h *huffTable) (int, error) {
	d.br.ensure(16)

	maxSymbols := uint32(len(h.lens))
	i := uint32(h.table[d.br.peek(h.bits)])
	if i >= maxSymbols {
		j := uint32(1) << (32 - h.bits)
		for {
			if j >>= 1; j == 0 {
				return 0, errLZXIllegalData
			}

			i <<= 1
			if d.br.buf&j != 0 {
				i |= 1
			}
			if int(i) >= len(h.table) {
				return 0, errLZXIllegalData
			}
			if i = uint32(h.table[i]); i < maxSymbols {
				break
			}
		}
	}

	d.br.remove(int(h.lens[i]))
	return int(i), nil
}

// readLengths reads code lengths lens[first:last] as deltas encoded with a freshly transmitted pretree.
func (d *lzxDecoder) readLengths(lens []byte, first, last int) error {
	for x := 0; x < lzxPretreeSymbols; x++ {
		d.pretree.lens[x] = byte(d.br.read(4))
	}
	if err := d.pretree.build(); err != nil {
		return err
	}

	delta := func(x, z int) byte {
		return byte((int(lens[x]) - z + 17) % 17)
	}

	for x := first; x < last; {
		z, err := d.readSym(&d.pretree)
		if err != nil {
			return err
		}

		switch z {
		case 17:
			for y := d.br.read(4) + 4; y > 0 && x < last; y-- {
				lens[x] = 0
				x++
			}
		case 18:
			for y := d.br.read(5) + 20; y > 0 && x < last; y-- {
				lens[x] = 0
				x++
			}
		case 19:
			y := d.br.read(1) + 4
			if z, err = d.readSym(&d.pretree); err != nil {
				return err
			}
			if z > 16 {
				return errLZXIllegalData
			}

			v := delta(x, z)
			for ; y > 0 && x < last; y-- {
				lens[x] = v
				x++
			}
		default:
			lens[x] = delta(x, z)
			x++
		}
	}

	return nil
}

func (d *lzxDecoder) readBlockHeader() error {
	if d.blockType == lzxBlockUncompressed {
		if d.blockLength&1 != 0 {
			d.br.pos++
		}
		d.br.realign()
	}

	d.blockType = int(d.br.read(3))
	hi := d.br.read(16)
	lo := d.br.read(8)
	d.blockLength = int(hi<<8 | lo)
	d.blockRemaining = d.blockLength

	switch d.blockType {
	case lzxBlockAligned:
		for i := 0; i < lzxAlignedSymbols; i++ {
			d.aligned.lens[i] = byte(d.br.read(3))
		}
		if err := d.aligned.build(); err != nil {
			return err
		}
		fallthrough

	case lzxBlockVerbatim:
		if err := d.readLengths(d.main.lens, 0, lzxNumChars); err != nil {
			return err
		}
		if err := d.readLengths(d.main.lens, lzxNumChars, d.mainElements); err != nil {
			return err
		}
		if err := d.main.build(); err != nil {
			return err
		}
		if d.main.lens[0xE8] != 0 {
			d.intelStarted = true
		}

		if err := d.readLengths(d.length.lens, 0, lzxNumSecondaryLengths); err != nil {
			return err
		}
		return d.length.build()

	case lzxBlockUncompressed:
		d.intelStarted = true

		// 1 to 16 bits of padding align the stream to the next 16-bit word.
		d.br.ensure(16)
		if d.br.left > 16 {
			d.br.pos -= 2
		}

		if d.br.pos+12 > len(d.br.in) {
			return errLZXIllegalData
		}
		in := d.br.in[d.br.pos:]
		d.r0 = binary.LittleEndian.Uint32(in[0:])
		d.r1 = binary.LittleEndian.Uint32(in[4:])
		d.r2 = binary.LittleEndian.Uint32(in[8:])
		d.br.pos += 12
		return nil

	default:
		return fmt.Errorf("%w: unknown block type %d", errLZXIllegalData, d.blockType)
	}
}

// decompress decodes one frame from in into out, where len(out) is the uncompressed size of the frame.
func (d *lzxDecoder) decompress(in, out []byte) error {
	d.br.reset(in)

	if !d.headerRead {
		var hi, lo uint32
		if d.br.read(1) != 0 {
			hi = d.br.read(16)
			lo = d.br.read(16)
		}
		d.intelFileSize = int32(hi<<16 | lo)
		d.headerRead = true
	}

	mask := d.windowSize - 1
	start := (d.windowPos - d.overrun) & mask
	togo := len(out) - d.overrun
	d.overrun = 0

	for togo > 0 {
		if d.blockRemaining == 0 {
			if err := d.readBlockHeader(); err != nil {
				return err
			}
		}

		if d.br.pos > len(in) && (d.br.pos > len(in)+2 || d.br.left < 16) {
			return errLZXIllegalData
		}

		for d.blockRemaining > 0 && togo > 0 {
			run := min(d.blockRemaining, togo)
			togo -= run
			d.blockRemaining -= run

			d.windowPos &= mask
			if d.windowPos+run > d.windowSize {
				return fmt.Errorf("%w: run crosses window boundary", errLZXIllegalData)
			}

			switch d.blockType {
			case lzxBlockVerbatim, lzxBlockAligned:
				var err error
				if run, err = d.decodeRun(run, d.blockType == lzxBlockAligned); err != nil {
					return err
				}

				// a match may run over the end of the frame; the excess belongs to the next frame.
				if run < 0 {
					over := -run
					if over > d.blockRemaining {
						return fmt.Errorf("%w: match overruns block", errLZXIllegalData)
					}
					d.blockRemaining -= over
					d.overrun += over
				}

			case lzxBlockUncompressed:
				if d.br.pos+run > len(in) {
					return fmt.Errorf("%w: uncompressed block exceeds input", errLZXIllegalData)
				}
				copy(d.window[d.windowPos:], in[d.br.pos:d.br.pos+run])
				d.br.pos += run
				d.windowPos += run

			default:
				return errLZXIllegalData
			}
		}
	}

	for i := range out {
		out[i] = d.window[(start+i)&mask]
	}

	d.translateE8(out)
	return nil
}

// decodeRun decodes literals and matches until run bytes were produced, returning the remaining (possibly negative)
// run length.
func (d *lzxDecoder) decodeRun(run int, aligned bool) (int, error) {
	mask := d.windowSize - 1

	for run > 0 {
		sym, err := d.readSym(&d.main)
		if err != nil {
			return run, err
		}

		if sym < lzxNumChars {
			d.window[d.windowPos&mask] = byte(sym)
			d.windowPos++
			run--
			continue
		}

		sym -= lzxNumChars
		matchLength := sym & lzxNumPrimaryLengths
		if matchLength == lzxNumPrimaryLengths {
			footer, err := d.readSym(&d.length)
			if err != nil {
				return run, err
			}
			matchLength += footer
		}
		matchLength += lzxMinMatch

		var offset uint32
		switch slot := sym >> 3; slot {
		case 0:
			offset = d.r0
		case 1:
			offset = d.r1
			d.r1, d.r0 = d.r0, offset
		case 2:
			offset = d.r2
			d.r2, d.r0 = d.r0, offset
		default:
			if slot >= len(lzxExtraBits) {
				return run, errLZXIllegalData
			}

			extra := int(lzxExtraBits[slot])
			offset = lzxPositionBase[slot] - 2

			switch {
			case !aligned:
				offset += d.br.read(extra)
			case extra > 3:
				offset += d.br.read(extra-3) << 3
				bits, err := d.readSym(&d.aligned)
				if err != nil {
					return run, err
				}
				offset += uint32(bits)
			case extra == 3:
				bits, err := d.readSym(&d.aligned)
				if err != nil {
					return run, err
				}
				offset += uint32(bits)
			case extra > 0:
				offset += d.br.read(extra)
			default:
				offset = 1
			}

			d.r2, d.r1, d.r0 = d.r1, d.r0, offset
		}

		if offset == 0 || int(offset) > d.windowSize {
			return run, fmt.Errorf("%w: match offset %d", errLZXIllegalData, offset)
		}

		for i := 0; i < matchLength; i++ {
			d.window[d.windowPos&mask] = d.window[(d.windowPos-int(offset))&mask]
			d.windowPos++
		}
		run -= matchLength
	}

	return run, nil
}

// translateE8 undoes the x86 CALL instruction translation applied by the compressor.
func (d *lzxDecoder) translateE8(out []byte) {
	defer func() { d.framesRead++ }()

	if d.framesRead >= 32768 || d.intelFileSize == 0 {
		return
	}

	if len(out) <= 6 || !d.intelStarted {
		d.intelCurPos += int32(len(out))
		return
	}

	curPos := d.intelCurPos
	d.intelCurPos += int32(len(out))

	for i, end := 0, len(out)-10; i < end; {
		if out[i] != 0xE8 {
			i++
			curPos++
			continue
		}
		i++

		abs := int32(binary.LittleEndian.Uint32(out[i:]))
		if abs >= -curPos && abs < d.intelFileSize {
			rel := abs + d.intelFileSize
			if abs >= 0 {
				rel = abs - curPos
			}
			binary.LittleEndian.PutUint32(out[i:], uint32(rel))
		}

		i += 4
		curPos += 5
	}
}
