package chat

import (
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"mvdan.cc/xurls/v2"
)

// Transform rewrites message text before it is spoken.
type Transform func(string) string

// Chain applies transforms left to right. Nil entries are skipped.
func Chain(ts ...Transform) Transform {
	return func(s string) string {
		for _, t := range ts {
			if t != nil {
				s = t(s)
			}
		}
		return s
	}
}

var strictURL = xurls.Strict()

// ShortenURLs replaces every absolute URL in s with its host name. Tokens
// that look like URLs but carry no host are left alone.
func ShortenURLs(s string) string {
	return strictURL.ReplaceAllStringFunc(s, func(match string) string {
		u, err := url.Parse(match)
		if err != nil || u.Hostname() == "" {
			return match
		}
		return u.Hostname()
	})
}

var markdown = goldmark.New()

// StripMarkdown removes inline markdown syntax and keeps the visible text.
// If nothing visible is left the input is returned as is.
func StripMarkdown(s string) string {
	src := []byte(s)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return s
	}
	return out
}
