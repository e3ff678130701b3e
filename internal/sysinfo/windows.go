package sysinfo

import (
	"encoding/binary"
	"fmt"
)

const (
	windowsPath = "/#WINDOWS"
	stringsPath = "/#STRINGS"

	windowsHeaderLen = 8
	windowsTitle     = 0x14
	windowsHHC       = 0x60
	windowsHHK       = 0x64
	windowsHome      = 0x68
)

// dword reads a little-endian uint32 at off, treating 0xFFFFFFFF and out-of-range reads as 0.
func dword(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}

	if v := binary.LittleEndian.Uint32(b[off:]); v != 0xFFFFFFFF {
		return v
	}

	return 0
}

// DecodeWindows reads the first #WINDOWS entry and resolves its string offsets against #STRINGS.
//
// The returned error describes why decoding stopped early; the returned Fields are valid regardless.
func DecodeWindows(a Archive) (f Fields, err error) {
	ui, err := a.Resolve(windowsPath)
	if err != nil {
		return f, err
	}

	header := make([]byte, windowsHeaderLen)
	if n, _ := a.Retrieve(ui, header, 0); n < windowsHeaderLen {
		return f, fmt.Errorf("%s has only %d bytes", windowsPath, n)
	}

	entries, entrySize := dword(header, 0), dword(header, 4)
	if entries == 0 {
		return f, nil
	}
	if entrySize == 0 || uint64(entrySize) > ui.Length-windowsHeaderLen {
		return f, fmt.Errorf("%s entry of %d bytes does not fit object of %d bytes", windowsPath, entrySize, ui.Length)
	}

	entry := make([]byte, min(entrySize, windowsHome+4))
	if n, _ := a.Retrieve(ui, entry, windowsHeaderLen); n < len(entry) {
		return f, fmt.Errorf("%s entry has only %d bytes", windowsPath, n)
	}

	title, hhc, hhk, home := dword(entry, windowsTitle), dword(entry, windowsHHC), dword(entry, windowsHHK), dword(entry, windowsHome)
	if title|hhc|hhk|home == 0 {
		return f, nil
	}

	s, err := readObject(a, stringsPath)
	if len(s) == 0 {
		return f, err
	}

	at := func(off uint32) string {
		if off == 0 || uint64(off) >= uint64(len(s)) {
			return ""
		}
		return cstring(s[off:])
	}

	f.HHC = internalPath(at(hhc))
	f.HHK = internalPath(at(hhk))
	f.Home = internalPath(at(home))
	f.Title = at(title)

	return f, err
}
