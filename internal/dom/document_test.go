package dom

import (
	"strings"
	"testing"
)

const sample = `<html><body>
<ol id="list">
  <li id="chat-messages-1"><h3><span id="message-username-1">bob</span></h3>
    <div id="message-content-1">hi <b>there</b></div></li>
  <li><div class="divider">Today</div></li>
  <li id="chat-messages-3"><img aria-hidden="true" src="/avatars/3.png"><div id="message-content-3">again</div></li>
</ol>
<p id="footer">bye<script>ignored()</script></p>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(s), "https://chat.example.com/channels/1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return d
}

func TestDocumentHandles(t *testing.T) {
	d := mustParse(t, sample)

	if !d.Has("chat-messages-1") {
		t.Fatal("expected id-based handle for first message")
	}
	n, ok := d.Node("chat-messages-3")
	if !ok || n.Data != "li" {
		t.Fatalf("Node(chat-messages-3) = %v, %v", n, ok)
	}
	if got := d.ID(n); got != "chat-messages-3" {
		t.Errorf("ID round trip = %q", got)
	}
	if d.Has("missing") {
		t.Error("unexpected handle for missing node")
	}
}

func TestHandlesStableAcrossParses(t *testing.T) {
	a := mustParse(t, sample)
	b := mustParse(t, sample)

	if a.Len() != b.Len() {
		t.Fatalf("element count differs: %d vs %d", a.Len(), b.Len())
	}
	for _, id := range a.FindAll(Tag("li")) {
		if !b.Has(id) {
			t.Errorf("handle %q missing from second parse", id)
		}
	}
}

func TestNextElementSibling(t *testing.T) {
	d := mustParse(t, sample)

	second, ok := d.NextElementSibling("chat-messages-1")
	if !ok {
		t.Fatal("expected a sibling after the first message")
	}
	if !strings.HasPrefix(string(second), pathPrefix) {
		t.Errorf("expected path handle for anonymous li, got %q", second)
	}

	third, ok := d.NextElementSibling(second)
	if !ok || third != "chat-messages-3" {
		t.Fatalf("third sibling = %q, %v", third, ok)
	}

	if _, ok := d.NextElementSibling(third); ok {
		t.Error("expected end of sibling run")
	}
	if _, ok := d.NextElementSibling("nope"); ok {
		t.Error("expected no sibling for unknown handle")
	}
}

func TestFindAndMatchers(t *testing.T) {
	d := mustParse(t, sample)

	n, ok := d.Find("chat-messages-1", IDPrefix("message-username"))
	if !ok || TextContent(n) != "bob" {
		t.Fatalf("username lookup = %v, %v", n, ok)
	}

	if _, ok := d.Find("chat-messages-3", IDPrefix("message-username")); ok {
		t.Error("did not expect a username in the continuation message")
	}

	img, ok := d.Find("chat-messages-3", And(Tag("img"), AttrEquals("aria-hidden", "true")))
	if !ok {
		t.Fatal("expected avatar image")
	}
	if got := d.ResolveURL(Attr(img, "src")); got != "https://chat.example.com/avatars/3.png" {
		t.Errorf("ResolveURL = %q", got)
	}

	if _, ok := d.Find("chat-messages-1", Not(Tag("h3"))); !ok {
		t.Error("Not(Tag) should match the span")
	}
}

func TestTextContent(t *testing.T) {
	d := mustParse(t, sample)

	if got := d.Text("message-content-1"); got != "hi there" {
		t.Errorf("Text = %q, want %q", got, "hi there")
	}
	if got := d.Text("footer"); got != "bye" {
		t.Errorf("script content should be skipped, got %q", got)
	}
	if got := d.Text("missing"); got != "" {
		t.Errorf("Text of missing node = %q", got)
	}
}

func TestRawTextKeepsDecomposedForm(t *testing.T) {
	d := mustParse(t, "<p id=\"name\"> Jose\u0301 </p>")
	n, ok := d.Node("name")
	if !ok {
		t.Fatal("node not found")
	}
	if got := RawText(n); got != "Jose\u0301" {
		t.Errorf("RawText = %q", got)
	}
	if got := TextContent(n); got != "Jos\u00e9" {
		t.Errorf("TextContent = %q", got)
	}
}

func TestClosestAndOrder(t *testing.T) {
	d := mustParse(t, sample)

	li, ok := d.Closest("message-content-3", IDPrefix("chat-messages-"))
	if !ok || li != "chat-messages-3" {
		t.Fatalf("Closest = %q, %v", li, ok)
	}
	if !d.Before("chat-messages-1", "chat-messages-3") {
		t.Error("expected document order 1 < 3")
	}
	if d.Before("chat-messages-3", "chat-messages-1") {
		t.Error("unexpected reverse order")
	}
}

func TestDuplicateIDsFallBackToPath(t *testing.T) {
	d := mustParse(t, `<div id="dup"></div><div id="dup"></div>`)

	divs := d.FindAll(Tag("div"))
	if len(divs) != 2 {
		t.Fatalf("expected 2 divs, got %d", len(divs))
	}
	if divs[0] != "dup" {
		t.Errorf("first div handle = %q", divs[0])
	}
	if !strings.HasPrefix(string(divs[1]), pathPrefix) {
		t.Errorf("second div should use a path handle, got %q", divs[1])
	}
}
