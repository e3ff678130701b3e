package bookinfo

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/go-ini/ini"
)

// FileName is the name of the metadata file at the root of an extraction directory.
const FileName = "bookinfo"

// Info is the book metadata persisted beside the extracted content.
type Info struct {
	HHC          string
	HHK          string
	Home         string
	Title        string
	Encoding     string
	VariableFont string
	FixedFont    string
}

// fields lists the persisted keys in file order.
func (info *Info) fields() []struct {
	key   string
	value *string
} {
	return []struct {
		key   string
		value *string
	}{
		{"hhc", &info.HHC},
		{"hhk", &info.HHK},
		{"home", &info.Home},
		{"title", &info.Title},
		{"encoding", &info.Encoding},
		{"variable_font", &info.VariableFont},
		{"fixed_font", &info.FixedFont},
	}
}

// values are stored verbatim; "#" and ";" are common in titles and must not start a comment.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	IgnoreContinuation:  true,
}

// Save writes info to the bookinfo file in dir, replacing any existing one.
//
// Empty values are omitted so that Load leaves the corresponding fields at their defaults. Every other value without a
// newline reads back exactly, including titles wrapped in quotes or padded with whitespace.
func Save(dir string, info Info) error {
	cfg := ini.Empty(loadOptions)
	sec := cfg.Section(ini.DefaultSection)

	for _, f := range info.fields() {
		if *f.value == "" {
			continue
		}

		if _, err := sec.NewKey(f.key, protect(*f.value)); err != nil {
			return fmt.Errorf(`set key "%s" error: %w`, f.key, err)
		}
	}

	path := filepath.Join(dir, FileName)
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf(`save bookinfo "%s" error: %w`, path, err)
	}

	return nil
}

// protect wraps values that go-ini would otherwise trim or unquote on load in triple quotes, which go-ini returns
// verbatim.
//
// Values containing a newline or backtick are left alone since go-ini triple-quotes those itself.
func protect(v string) string {
	if strings.ContainsAny(v, "\n`") {
		return v
	}

	first, last := v[0], v[len(v)-1]
	if first == '"' || first == '\'' || last == '"' || last == '\'' || unicode.IsSpace(rune(first)) || unicode.IsSpace(rune(last)) {
		return `"""` + v + `"""`
	}

	return v
}

// Load reads the bookinfo file in dir into info.
//
// Only keys present in the file overwrite fields of info, so info should be populated with defaults beforehand.
// Unknown keys are ignored.
func Load(dir string, info *Info) error {
	path := filepath.Join(dir, FileName)

	cfg, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return fmt.Errorf(`load bookinfo "%s" error: %w`, path, err)
	}

	sec := cfg.Section(ini.DefaultSection)
	for _, f := range info.fields() {
		if sec.HasKey(f.key) {
			*f.value = sec.Key(f.key).Value()
		}
	}

	return nil
}
