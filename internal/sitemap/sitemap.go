// Package sitemap parses the HTML sitemaps used by compiled help for the table of contents (.hhc) and the index
// (.hhk).
package sitemap

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Entry is one topic of a sitemap.
type Entry struct {
	// Name is the displayed name of the topic.
	Name string
	// Local is the link to the topic, usually relative to the root of the book.
	Local string
	// Children are the nested topics.
	Children []Entry
}

// Parse reads a sitemap whose bytes are in the named encoding.
//
// An encoding that is not recognised is ignored and the bytes are parsed as UTF-8.
func Parse(r io.Reader, encoding string) ([]Entry, error) {
	if cr, err := charset.NewReaderLabel(encoding, r); err == nil {
		r = cr
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap error: %w", err)
	}

	ul := findElement(doc, "ul")
	if ul == nil {
		return nil, nil
	}

	return parseList(ul), nil
}

// ParseBytes is a convenience wrapper around Parse.
func ParseBytes(data []byte, encoding string) ([]Entry, error) {
	return Parse(bytes.NewReader(data), encoding)
}

// Load parses the sitemap file at path.
func Load(path, encoding string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Parse(f, encoding)
	if err != nil {
		return nil, fmt.Errorf(`load sitemap "%s" error: %w`, path, err)
	}

	return entries, nil
}

// Flatten returns every entry of the tree in depth-first order, without their children.
func Flatten(entries []Entry) []Entry {
	var flat []Entry
	var walk func([]Entry)
	walk = func(entries []Entry) {
		for _, e := range entries {
			flat = append(flat, Entry{Name: e.Name, Local: e.Local})
			walk(e.Children)
		}
	}
	walk(entries)

	return flat
}

// parseList converts the items of a <ul>.
//
// Sitemaps nest a <ul> either inside the <li> it belongs to, or right after that <li> when the <li> was closed
// explicitly; both attach to the preceding entry.
func parseList(ul *html.Node) []Entry {
	var entries []Entry

	for c := ul.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}

		switch c.Data {
		case "li":
			e, ok := parseItem(c)
			if !ok {
				continue
			}
			entries = append(entries, e)
		case "ul":
			children := parseList(c)
			if n := len(entries); n > 0 {
				entries[n-1].Children = append(entries[n-1].Children, children...)
			} else {
				entries = append(entries, children...)
			}
		}
	}

	return entries
}

func parseItem(li *html.Node) (e Entry, ok bool) {
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}

		switch c.Data {
		case "object":
			if ok || !strings.EqualFold(attr(c, "type"), "text/sitemap") {
				continue
			}
			e.Name, e.Local, ok = params(c)
		case "ul":
			e.Children = append(e.Children, parseList(c)...)
		}
	}

	if !ok && len(e.Children) > 0 {
		// an item without its own topic still groups its children.
		ok = true
	}

	return e, ok
}

// params returns the first Name and Local parameters of a sitemap object.
func params(obj *html.Node) (name, local string, ok bool) {
	var hasName, hasLocal bool

	for c := obj.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "param" {
			continue
		}

		switch v := attr(c, "value"); strings.ToLower(attr(c, "name")) {
		case "name":
			if !hasName {
				name, hasName = v, true
			}
		case "local":
			if !hasLocal {
				local, hasLocal = v, true
			}
		}
	}

	return name, local, hasName || hasLocal
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}

	return ""
}

// findElement performs a depth-first search for the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}

	return nil
}
