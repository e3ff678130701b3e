package sysinfo

// lcidEncodings maps full locale ids whose encoding differs from that of their primary language.
var lcidEncodings = map[uint32]string{
	0x0404: "big5",         // zh-TW
	0x0c04: "big5",         // zh-HK
	0x1404: "big5",         // zh-MO
	0x0804: "gbk",          // zh-CN
	0x1004: "gbk",          // zh-SG
	0x0c1a: "windows-1251", // sr-Cyrl-CS
	0x1c1a: "windows-1251", // sr-Cyrl-BA
	0x201a: "windows-1251", // bs-Cyrl-BA
	0x082c: "windows-1251", // az-Cyrl-AZ
	0x0843: "windows-1251", // uz-Cyrl-UZ
}

// languageEncodings maps primary language ids (the low 10 bits of a locale id) to the encoding of their Windows ANSI
// code page.
var languageEncodings = map[uint32]string{
	// Western European.
	0x03: "windows-1252", // ca
	0x06: "windows-1252", // da
	0x07: "windows-1252", // de
	0x09: "windows-1252", // en
	0x0a: "windows-1252", // es
	0x0b: "windows-1252", // fi
	0x0c: "windows-1252", // fr
	0x0f: "windows-1252", // is
	0x10: "windows-1252", // it
	0x13: "windows-1252", // nl
	0x14: "windows-1252", // no
	0x16: "windows-1252", // pt
	0x1d: "windows-1252", // sv
	0x21: "windows-1252", // id
	0x2d: "windows-1252", // eu
	0x36: "windows-1252", // af
	0x38: "windows-1252", // fo
	0x3e: "windows-1252", // ms
	0x41: "windows-1252", // sw
	0x56: "windows-1252", // gl

	// Central European.
	0x05: "windows-1250", // cs
	0x0e: "windows-1250", // hu
	0x15: "windows-1250", // pl
	0x18: "windows-1250", // ro
	0x1a: "windows-1250", // hr, sr-Latn, bs-Latn
	0x1b: "windows-1250", // sk
	0x1c: "windows-1250", // sq
	0x24: "windows-1250", // sl

	// Cyrillic.
	0x02: "windows-1251", // bg
	0x19: "windows-1251", // ru
	0x22: "windows-1251", // uk
	0x23: "windows-1251", // be
	0x2f: "windows-1251", // mk
	0x3f: "windows-1251", // kk
	0x40: "windows-1251", // ky
	0x44: "windows-1251", // tt
	0x50: "windows-1251", // mn

	0x08: "windows-1253", // el

	0x1f: "windows-1254", // tr
	0x2c: "windows-1254", // az-Latn
	0x43: "windows-1254", // uz-Latn

	0x0d: "windows-1255", // he

	0x01: "windows-1256", // ar
	0x20: "windows-1256", // ur
	0x29: "windows-1256", // fa

	0x25: "windows-1257", // et
	0x26: "windows-1257", // lv
	0x27: "windows-1257", // lt

	0x2a: "windows-1258", // vi
	0x1e: "windows-874",  // th

	0x04: "gbk",       // zh
	0x11: "shift_jis", // ja
	0x12: "euc-kr",    // ko
}

// EncodingForLCID returns the WHATWG label of the text encoding used by the given Windows locale id.
//
// The full locale id is looked up first, then its primary language.
func EncodingForLCID(lcid uint32) (string, bool) {
	if enc, ok := lcidEncodings[lcid]; ok {
		return enc, true
	}

	enc, ok := languageEncodings[lcid&0x3ff]
	return enc, ok
}
