package chat

import (
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/chatreader/internal/dom"
)

// Cursor records where a walk stopped, so a later walk over a grown
// document can pick up after it.
type Cursor struct {
	Last  dom.NodeID // last sibling visited
	State State      // fold state after Last
}

// Builder turns a run of sibling elements into a reading queue.
type Builder struct {
	doc       *dom.Document
	extractor *Extractor
	transform Transform
}

// NewBuilder returns a builder for doc. A nil transform defaults to
// ShortenURLs.
func NewBuilder(doc *dom.Document, sel Selectors, transform Transform) *Builder {
	if transform == nil {
		transform = ShortenURLs
	}
	return &Builder{
		doc:       doc,
		extractor: NewExtractor(doc, sel),
		transform: transform,
	}
}

// Document returns the document the builder reads.
func (b *Builder) Document() *dom.Document {
	return b.doc
}

// Build returns one record per message from start to the end of its sibling
// run, in document order.
func (b *Builder) Build(start dom.NodeID) []Record {
	records, _ := b.Walk(start, State{})
	return records
}

// Walk is Build with an explicit starting fold state. It also returns the
// cursor after the last sibling.
func (b *Builder) Walk(start dom.NodeID, st State) ([]Record, Cursor) {
	cur := Cursor{State: st}
	if !b.doc.Has(start) {
		return nil, cur
	}

	var records []Record
	for id, ok := start, true; ok; id, ok = b.doc.NextElementSibling(id) {
		msg, next, found := b.extractor.Extract(id, cur.State)
		cur = Cursor{Last: id, State: next}
		if !found {
			continue
		}
		records = append(records, Record{
			Node:     id,
			Text:     b.speech(msg),
			Username: msg.Username,
			Avatar:   msg.Avatar,
		})
	}

	log.Debug("built queue", "start", start, "records", len(records))
	return records, cur
}

// Resume walks the siblings that follow c.Last. It returns nothing when
// c.Last is unknown or the run has not grown.
func (b *Builder) Resume(c Cursor) ([]Record, Cursor) {
	next, ok := b.doc.NextElementSibling(c.Last)
	if !ok {
		return nil, c
	}
	return b.Walk(next, c.State)
}

func (b *Builder) speech(msg Message) string {
	text := b.transform(msg.Text)
	if msg.NeedsUsername && msg.Username != "" {
		return msg.Username + " says: " + text
	}
	return text
}
