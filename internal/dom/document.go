package dom

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// ErrNodeNotFound is returned when a NodeID does not belong to the document.
var ErrNodeNotFound = errors.New("node not found")

// NodeID is an opaque, stable handle for an element in a Document.
//
// Elements that carry an id attribute use it verbatim, so the same message
// keeps its handle when the document is parsed again. Other elements get a
// path handle built from child indexes.
type NodeID string

const pathPrefix = "path:"

// IsZero reports whether the handle is empty.
func (id NodeID) IsZero() bool { return id == "" }

// Document is a parsed HTML document with a handle lookup table.
type Document struct {
	root  *html.Node
	base  *url.URL
	nodes map[NodeID]*html.Node
	ids   map[*html.Node]NodeID
	order map[NodeID]int
}

// Parse reads an HTML document. base, when non-empty, is used to resolve
// relative attribute URLs such as avatar sources.
func Parse(r io.Reader, base string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse document: %w", err)
	}

	d := &Document{
		root:  root,
		nodes: make(map[NodeID]*html.Node),
		ids:   make(map[*html.Node]NodeID),
		order: make(map[NodeID]int),
	}
	if base != "" {
		if u, err := url.Parse(base); err == nil {
			d.base = u
		}
	}
	d.index()
	return d, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s), "")
}

// index assigns handles to every element in document order.
func (d *Document) index() {
	seen := make(map[string]bool)
	var walk func(n *html.Node, path []int)
	walk = func(n *html.Node, path []int) {
		if n.Type == html.ElementNode {
			id := NodeID(pathPrefix + joinPath(path))
			if v := Attr(n, "id"); v != "" && !seen[v] && !strings.HasPrefix(v, pathPrefix) {
				seen[v] = true
				id = NodeID(v)
			}
			d.nodes[id] = n
			d.ids[n] = id
			d.order[id] = len(d.order)
		}
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, append(path, i))
			i++
		}
	}
	walk(d.root, nil)
}

func joinPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, "/")
}

// Len returns the number of indexed elements.
func (d *Document) Len() int { return len(d.nodes) }

// Node returns the element behind a handle.
func (d *Document) Node(id NodeID) (*html.Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// ID returns the handle of an element, or the zero handle if the element
// does not belong to this document.
func (d *Document) ID(n *html.Node) NodeID {
	return d.ids[n]
}

// Has reports whether the handle belongs to the document.
func (d *Document) Has(id NodeID) bool {
	_, ok := d.nodes[id]
	return ok
}

// Before reports whether a comes before b in document order.
func (d *Document) Before(a, b NodeID) bool {
	ia, okA := d.order[a]
	ib, okB := d.order[b]
	return okA && okB && ia < ib
}

// NextElementSibling returns the next sibling element of id.
func (d *Document) NextElementSibling(id NodeID) (NodeID, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return "", false
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return d.ids[s], true
		}
	}
	return "", false
}

// Find returns the first descendant of id (not id itself) matching m, in
// document order.
func (d *Document) Find(id NodeID, m Matcher) (*html.Node, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, false
	}
	return findFirst(n, m)
}

func findFirst(n *html.Node, m Matcher) (*html.Node, bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && m(c) {
			return c, true
		}
		if found, ok := findFirst(c, m); ok {
			return found, true
		}
	}
	return nil, false
}

// FindAll returns the handles of every element matching m, in document
// order.
func (d *Document) FindAll(m Matcher) []NodeID {
	var out []NodeID
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && m(n) {
			out = append(out, d.ids[n])
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// Closest returns the nearest ancestor-or-self of id that matches m.
func (d *Document) Closest(id NodeID, m Matcher) (NodeID, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return "", false
	}
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && m(n) {
			return d.ids[n], true
		}
	}
	return "", false
}

// Text returns the normalized text content of an element.
func (d *Document) Text(id NodeID) string {
	n, ok := d.nodes[id]
	if !ok {
		return ""
	}
	return TextContent(n)
}

// ResolveURL resolves ref against the document base. Unparsable references
// are returned unchanged.
func (d *Document) ResolveURL(ref string) string {
	if d.base == nil || ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.base.ResolveReference(u).String()
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

// TextContent concatenates every descendant text node, trims the result
// and normalizes it to NFC. Script and style contents are skipped.
func TextContent(n *html.Node) string {
	return norm.NFC.String(RawText(n))
}

// RawText is TextContent without normalization. Values that are hashed,
// such as usernames, keep the code units the page holds.
func RawText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
