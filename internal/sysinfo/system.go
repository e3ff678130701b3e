package sysinfo

import (
	"encoding/binary"
)

const (
	systemPath = "/#SYSTEM"

	// records start after the 4-byte version field.
	systemRecordsOffset = 4
)

// systemPass is the state of a #SYSTEM walk.
type systemPass struct {
	a Archive
	f Fields
}

// systemRecord decodes the payload of one #SYSTEM record.
//
// width is the minimum payload width; records declaring a shorter length are read at this width.
type systemRecord struct {
	width  int
	decode func(p *systemPass, payload []byte)
}

var systemRecords = map[uint16]systemRecord{
	0: {decode: func(p *systemPass, payload []byte) {
		p.f.HHC = internalPath(cstring(payload))
	}},
	1: {decode: func(p *systemPass, payload []byte) {
		p.f.HHK = internalPath(cstring(payload))
	}},
	2: {decode: func(p *systemPass, payload []byte) {
		p.f.Home = internalPath(cstring(payload))
	}},
	3: {decode: func(p *systemPass, payload []byte) {
		p.f.Title = cstring(payload)
	}},
	4: {width: 4, decode: func(p *systemPass, payload []byte) {
		if len(payload) >= 4 {
			p.f.LCID, p.f.HasLCID = binary.LittleEndian.Uint32(payload), true
		}
	}},
	6: {decode: func(p *systemPass, payload []byte) {
		base := cstring(payload)
		if base == "" {
			return
		}

		if hhc := internalPath(base + ".hhc"); p.resolves(hhc) {
			p.f.TopicHHC = hhc
		}
		if hhk := internalPath(base + ".hhk"); p.resolves(hhk) {
			p.f.TopicHHK = hhk
		}
	}},
	16: {decode: func(p *systemPass, payload []byte) {
		p.f.Font = cstring(payload)
	}},
}

func (p *systemPass) resolves(path string) bool {
	_, err := p.a.Resolve(path)
	return err == nil
}

// DecodeSystem walks the tagged records of #SYSTEM.
//
// The returned error describes why decoding stopped early; the returned Fields are valid regardless.
func DecodeSystem(a Archive) (Fields, error) {
	p := &systemPass{a: a}

	b, err := readObject(a, systemPath)
	if len(b) > systemRecordsOffset {
		p.walk(b[systemRecordsOffset:])
	}

	return p.f, err
}

// walk decodes records until fewer than 4 bytes remain. A truncated trailing record is clipped to what is left.
func (p *systemPass) walk(b []byte) {
	for pos := 0; len(b)-pos >= 4; {
		tag := binary.LittleEndian.Uint16(b[pos:])
		n := int(binary.LittleEndian.Uint16(b[pos+2:]))
		pos += 4

		r, ok := systemRecords[tag]
		n = max(n, r.width)

		end := min(pos+n, len(b))
		if ok {
			r.decode(p, b[pos:end])
		}

		pos = end
	}
}
