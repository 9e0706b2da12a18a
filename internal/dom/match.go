package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Matcher reports whether an element satisfies a query.
type Matcher func(n *html.Node) bool

// IDPrefix matches elements whose id starts with prefix, like the CSS
// selector [id^="prefix"].
func IDPrefix(prefix string) Matcher {
	return func(n *html.Node) bool {
		id := Attr(n, "id")
		return id != "" && strings.HasPrefix(id, prefix)
	}
}

// ClassPrefix matches elements whose raw class attribute starts with prefix,
// like the CSS selector [class^="prefix"].
func ClassPrefix(prefix string) Matcher {
	return func(n *html.Node) bool {
		class := Attr(n, "class")
		return class != "" && strings.HasPrefix(class, prefix)
	}
}

// AttrEquals matches elements with the attribute set to value.
func AttrEquals(name, value string) Matcher {
	return func(n *html.Node) bool {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == name {
				return a.Val == value
			}
		}
		return false
	}
}

// Tag matches elements by tag name.
func Tag(name string) Matcher {
	name = strings.ToLower(name)
	return func(n *html.Node) bool {
		return n.Data == name
	}
}

// And matches elements satisfying every matcher.
func And(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

// Not inverts a matcher.
func Not(m Matcher) Matcher {
	return func(n *html.Node) bool {
		return !m(n)
	}
}
