package chat

import (
	"github.com/dgnsrekt/chatreader/internal/dom"
)

// State is the fold state threaded through a sibling walk.
type State struct {
	LastUsername    string // last username seen on a message
	LastAvatar      string // last avatar seen on a message
	PreviousSpeaker string // username attributed to the previous spoken message
}

// Message is what the extractor found in one element.
type Message struct {
	Username      string
	Text          string
	Avatar        string
	NeedsUsername bool // speaker differs from the previous spoken message
}

// Extractor reads messages out of transcript elements.
type Extractor struct {
	doc      *dom.Document
	username dom.Matcher
	content  dom.Matcher
	avatar   dom.Matcher
}

// NewExtractor returns an extractor for doc. Empty selector fields fall back
// to the defaults.
func NewExtractor(doc *dom.Document, sel Selectors) *Extractor {
	sel = sel.withDefaults()
	return &Extractor{
		doc:      doc,
		username: dom.IDPrefix(sel.UsernameIDPrefix),
		content: dom.And(
			dom.IDPrefix(sel.ContentIDPrefix),
			dom.Not(dom.ClassPrefix(sel.ReplyClassPrefix)),
		),
		avatar: dom.And(dom.Tag("img"), dom.AttrEquals(sel.AvatarAttr, sel.AvatarValue)),
	}
}

// Extract reads the message held by id. Identity missing from the element is
// carried over from st, so a run of messages by one author only needs to
// name them once. ok is false for elements without message content, in
// which case st is returned unchanged.
func (e *Extractor) Extract(id dom.NodeID, st State) (msg Message, next State, ok bool) {
	username := st.LastUsername
	if n, found := e.doc.Find(id, e.username); found {
		username = dom.RawText(n)
	}

	avatar := st.LastAvatar
	if n, found := e.doc.Find(id, e.avatar); found {
		if src := dom.Attr(n, "src"); src != "" {
			avatar = e.doc.ResolveURL(src)
		}
	}

	n, found := e.doc.Find(id, e.content)
	if !found {
		return Message{}, st, false
	}
	text := dom.TextContent(n)
	if text == "" {
		return Message{}, st, false
	}

	msg = Message{
		Username:      username,
		Text:          text,
		Avatar:        avatar,
		NeedsUsername: username != st.PreviousSpeaker,
	}

	next = st
	if username != "" {
		next.LastUsername = username
	}
	if avatar != "" {
		next.LastAvatar = avatar
	}
	next.PreviousSpeaker = username
	return msg, next, true
}
