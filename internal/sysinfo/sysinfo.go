package sysinfo

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/nguyengg/xchm/chm"
)

// DefaultEncoding is used when the archive does not record a known locale.
const DefaultEncoding = "UTF-8"

// maxObjectSize caps how much of a control object is read into memory.
const maxObjectSize = 1 << 20

// Archive is the subset of *chm.File needed to decode metadata.
type Archive interface {
	Resolve(path string) (chm.UnitInfo, error)
	Retrieve(ui chm.UnitInfo, buf []byte, offset uint64) (int, error)
}

// Fields are the values recovered by a single decoding pass. Empty values are unset.
type Fields struct {
	HHC   string
	HHK   string
	Home  string
	Title string

	// TopicHHC and TopicHHK are synthesized from the default topic base name of #SYSTEM tag 6, set only if the
	// archive resolves them.
	TopicHHC string
	TopicHHK string

	// LCID is the locale id of #SYSTEM tag 4; HasLCID tells whether it was present.
	LCID    uint32
	HasLCID bool

	// Font is the font hint of #SYSTEM tag 16. It is recorded but not applied.
	Font string
}

// Info is the decoded book metadata.
type Info struct {
	HHC      string
	HHK      string
	Home     string
	Title    string
	Encoding string
	Font     string
}

// Options customises Decode.
type Options struct {
	// Encoding is the encoding to use when the archive does not record a known locale. Defaults to DefaultEncoding.
	Encoding string

	// Logger receives debug messages about missing or undersized objects. Defaults to discarding them.
	Logger *log.Logger
}

// Decode recovers the book metadata from the #SYSTEM, #WINDOWS, and #STRINGS objects.
//
// Missing or malformed objects never fail decoding; the affected fields are simply left unset. #SYSTEM values take
// precedence over #WINDOWS ones. The title and navigation paths are transcoded to UTF-8 from the encoding of the
// archive's locale.
func Decode(a Archive, optFns ...func(*Options)) Info {
	opts := &Options{Encoding: DefaultEncoding}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	sys, err := DecodeSystem(a)
	if err != nil {
		opts.Logger.Printf("decode #SYSTEM incomplete: %v", err)
	}

	win, err := DecodeWindows(a)
	if err != nil {
		opts.Logger.Printf("decode #WINDOWS incomplete: %v", err)
	}

	info := Info{
		HHC:      firstNonEmpty(sys.HHC, sys.TopicHHC, win.HHC),
		HHK:      firstNonEmpty(sys.HHK, sys.TopicHHK, win.HHK),
		Home:     firstNonEmpty(sys.Home, win.Home),
		Title:    firstNonEmpty(sys.Title, win.Title),
		Encoding: opts.Encoding,
		Font:     sys.Font,
	}
	if info.Encoding == "" {
		info.Encoding = DefaultEncoding
	}

	if sys.HasLCID {
		if enc, ok := EncodingForLCID(sys.LCID); ok {
			info.Encoding = enc
		} else {
			opts.Logger.Printf("unknown LCID 0x%04x, keeping encoding %s", sys.LCID, info.Encoding)
		}
	}

	for _, s := range []*string{&info.Title, &info.HHC, &info.HHK, &info.Home} {
		if *s == "" {
			continue
		}

		if *s, err = Transcode(*s, info.Encoding); err != nil {
			opts.Logger.Printf("transcode %q from %s error: %v", *s, info.Encoding, err)
		}
	}

	return info
}

// readObject reads the whole named object, up to maxObjectSize bytes.
func readObject(a Archive, path string) ([]byte, error) {
	ui, err := a.Resolve(path)
	if err != nil {
		return nil, err
	}

	b := make([]byte, min(ui.Length, maxObjectSize))
	n, err := a.Retrieve(ui, b, 0)
	if n < len(b) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return b[:n], fmt.Errorf(`read "%s" error: %w`, path, err)
	}

	return b, nil
}

// internalPath turns a raw path string into an absolute internal path.
func internalPath(s string) string {
	if s == "" || strings.HasPrefix(s, "/") {
		return s
	}

	return "/" + s
}

// cstring returns the bytes of b up to the first NUL.
func cstring(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}

	return string(b)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
