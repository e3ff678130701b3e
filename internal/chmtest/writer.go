package chmtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Object is an internal object to store in a synthesized archive.
type Object struct {
	// Path is the internal path. Directories end with "/" and have no Data.
	Path string
	// Data is the object's content.
	Data []byte
	// Compressed stores the object in the MSCompressed section instead of the uncompressed one.
	Compressed bool
}

// Options customises Build.
type Options struct {
	// Version is the ITSF version, 2 or 3. Defaults to 3.
	Version int
	// LangID is recorded in the ITSF header.
	LangID uint32
	// ChunkLen is the length of each directory listing chunk. Defaults to 4096.
	ChunkLen int
	// ReverseChunks stores the listing chunks in reverse physical order while keeping the chain in logical order.
	ReverseChunks bool
	// BreakChain makes the first chunk point to a chunk that does not exist.
	BreakChain bool
}

const (
	frameLen     = 0x8000
	resetBlocks  = 2
	itsfV2Len    = 0x58
	itsfV3Len    = 0x60
	itspLen      = 0x54
	pmglLen      = 0x14
	resetTblLen  = 0x28
	resetTblPath = "::DataSpace/Storage/MSCompressed/Transform/{7FC28940-9D31-11D0-9B27-00A0C91E9C7C}/InstanceData/ResetTable"
)

type entry struct {
	path          string
	space         uint64
	start, length uint64
}

// Build returns the bytes of an ITSF archive holding the given objects, listed in the given order.
//
// Compressed objects are encoded as LZX uncompressed blocks with a 64 KiB window and a reset every two blocks.
func Build(objects []Object, optFns ...func(*Options)) []byte {
	opts := &Options{Version: 3, ChunkLen: 4096}
	for _, fn := range optFns {
		fn(opts)
	}

	var (
		section0 bytes.Buffer
		stream   bytes.Buffer
		entries  = make([]entry, 0, len(objects)+3)
	)

	for _, o := range objects {
		e := entry{path: o.Path, length: uint64(len(o.Data))}
		if o.Compressed && len(o.Data) > 0 {
			e.space, e.start = 1, uint64(stream.Len())
			stream.Write(o.Data)
		} else {
			e.start = uint64(section0.Len())
			section0.Write(o.Data)
		}
		entries = append(entries, e)
	}

	if stream.Len() > 0 {
		content, offsets := Frames(stream.Bytes())

		entries = append(entries, entry{
			path:   "::DataSpace/Storage/MSCompressed/Content",
			start:  uint64(section0.Len()),
			length: uint64(len(content)),
		})
		section0.Write(content)

		cd := controlData()
		entries = append(entries, entry{
			path:   "::DataSpace/Storage/MSCompressed/ControlData",
			start:  uint64(section0.Len()),
			length: uint64(len(cd)),
		})
		section0.Write(cd)

		rt := resetTable(offsets, uint64(stream.Len()), uint64(len(content)))
		entries = append(entries, entry{
			path:   resetTblPath,
			start:  uint64(section0.Len()),
			length: uint64(len(rt)),
		})
		section0.Write(rt)
	}

	chunks := listing(entries, opts)

	headerLen := itsfV3Len
	if opts.Version == 2 {
		headerLen = itsfV2Len
	}
	dirOffset := uint64(headerLen)
	dirLen := uint64(itspLen + len(chunks)*opts.ChunkLen)

	var b bytes.Buffer
	b.WriteString("ITSF")
	write(&b, int32(opts.Version), int32(headerLen), int32(1), uint32(0), opts.LangID)
	b.Write(make([]byte, 32))
	write(&b, uint64(0), uint64(0), dirOffset, dirLen)
	if opts.Version != 2 {
		write(&b, dirOffset+dirLen)
	}

	indexHead := int32(0)
	if opts.ReverseChunks {
		indexHead = int32(len(chunks) - 1)
	}

	b.WriteString("ITSP")
	write(&b, int32(1), int32(itspLen), int32(10), uint32(opts.ChunkLen), int32(2), int32(1), int32(-1), indexHead,
		int32(-1), uint32(len(chunks)), int32(-1), opts.LangID)
	b.Write(make([]byte, 32))

	for _, c := range chunks {
		b.Write(c)
	}
	b.Write(section0.Bytes())

	return b.Bytes()
}

// WriteFile builds the archive and writes it to a file in a temporary directory, returning its path.
func WriteFile(t testing.TB, name string, objects []Object, optFns ...func(*Options)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(objects, optFns...), 0644); err != nil {
		t.Fatalf(`write file "%s" error: %v`, path, err)
	}

	return path
}

// listing packs the entries into PMGL chunks, returned in physical order.
func listing(entries []entry, opts *Options) [][]byte {
	var (
		bodies [][]byte
		cur    bytes.Buffer
		limit  = opts.ChunkLen - pmglLen
	)

	for _, e := range entries {
		var rec bytes.Buffer
		rec.Write(EncInt(uint64(len(e.path))))
		rec.WriteString(e.path)
		rec.Write(EncInt(e.space))
		rec.Write(EncInt(e.start))
		rec.Write(EncInt(e.length))

		if cur.Len()+rec.Len() > limit && cur.Len() > 0 {
			bodies = append(bodies, bytes.Clone(cur.Bytes()))
			cur.Reset()
		}
		cur.Write(rec.Bytes())
	}
	bodies = append(bodies, bytes.Clone(cur.Bytes()))

	n := len(bodies)
	physical := func(i int) int {
		if opts.ReverseChunks {
			return n - 1 - i
		}
		return i
	}

	chunks := make([][]byte, n)
	for i, body := range bodies {
		prev, next := int32(-1), int32(-1)
		if i > 0 {
			prev = int32(physical(i - 1))
		}
		if i < n-1 {
			next = int32(physical(i + 1))
		}
		if i == 0 && opts.BreakChain {
			next = int32(n + 10)
		}

		var c bytes.Buffer
		c.WriteString("PMGL")
		write(&c, uint32(opts.ChunkLen-pmglLen-len(body)), uint32(0), prev, next)
		c.Write(body)
		c.Write(make([]byte, opts.ChunkLen-c.Len()))
		chunks[physical(i)] = c.Bytes()
	}

	return chunks
}

// Frames encodes data as a sequence of LZX frames made of uncompressed blocks, one block per frame.
//
// The returned offsets are the start of each frame within the returned stream.
func Frames(data []byte) (stream []byte, offsets []uint64) {
	var b bytes.Buffer
	for k := 0; k*frameLen < len(data); k++ {
		offsets = append(offsets, uint64(b.Len()))

		frame := data[k*frameLen : min((k+1)*frameLen, len(data))]

		w := &BitWriter{}
		if k%resetBlocks == 0 {
			// no Intel E8 translation.
			w.Write(0, 1)
		}
		w.Write(3, 3)
		w.Write(uint32(len(frame))>>8, 16)
		w.Write(uint32(len(frame))&0xff, 8)
		w.Align()

		b.Write(w.Bytes())
		write(&b, uint32(1), uint32(1), uint32(1))
		b.Write(frame)
		if len(frame)&1 != 0 {
			b.WriteByte(0)
		}
	}

	return b.Bytes(), offsets
}

func controlData() []byte {
	var b bytes.Buffer
	write(&b, uint32(6))
	b.WriteString("LZXC")
	// version 2 expresses reset interval and window size in 32 KiB units.
	write(&b, uint32(2), uint32(2), uint32(2), uint32(1), uint32(0))
	return b.Bytes()
}

func resetTable(offsets []uint64, uncompressedLen, compressedLen uint64) []byte {
	var b bytes.Buffer
	write(&b, uint32(2), uint32(len(offsets)), uint32(8), uint32(resetTblLen), uncompressedLen, compressedLen, uint64(frameLen))
	for _, o := range offsets {
		write(&b, o)
	}
	return b.Bytes()
}

// EncInt encodes v as a big-endian 7-bit variable-length integer.
func EncInt(v uint64) []byte {
	b := []byte{byte(v & 0x7f)}
	for v >>= 7; v != 0; v >>= 7 {
		b = append([]byte{byte(v&0x7f) | 0x80}, b...)
	}
	return b
}

// BitWriter produces an LZX bitstream: bits are packed most significant first into 16-bit little-endian words.
type BitWriter struct {
	b    []byte
	cur  uint32
	bits int
}

// Write appends the low n bits of v.
func (w *BitWriter) Write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.cur = w.cur<<1 | (v>>i)&1
		if w.bits++; w.bits == 16 {
			w.b = append(w.b, byte(w.cur), byte(w.cur>>8))
			w.cur, w.bits = 0, 0
		}
	}
}

// Align pads the stream the way an uncompressed block header expects: up to the next 16-bit word, or a whole zero
// word if already aligned.
func (w *BitWriter) Align() {
	if w.bits == 0 {
		w.Write(0, 16)
		return
	}
	w.Write(0, 16-w.bits)
}

// Flush pads the stream with zeros to the next 16-bit word.
func (w *BitWriter) Flush() {
	if w.bits != 0 {
		w.Write(0, 16-w.bits)
	}
}

// Bytes returns the complete words written so far.
func (w *BitWriter) Bytes() []byte {
	return w.b
}

func write(b *bytes.Buffer, vs ...any) {
	for _, v := range vs {
		if err := binary.Write(b, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
}
