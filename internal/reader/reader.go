// Package reader ties a transcript to the playback engine: it builds the
// reading queue from the document, assigns voices and keeps the queue
// growing while the transcript file grows.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/playback"
	"github.com/dgnsrekt/chatreader/internal/source"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

// ErrNoMessages is returned when a transcript has no chat list.
var ErrNoMessages = errors.New("no chat messages found")

// Options configures a Reader.
type Options struct {
	Selectors chat.Selectors
	Transform chat.Transform // nil shortens URLs only
	Rate      float64
	// Voice pins every speaker to one voice ID or name. Empty gives each
	// speaker their own voice.
	Voice string
}

// Entry is one message as listed in the transcript pane.
type Entry struct {
	Node     dom.NodeID
	Username string // after the continuation fold
	Text     string
	Avatar   string
}

// Reader owns the document, the marks and the engine of one transcript.
type Reader struct {
	opts    Options
	marks   *dom.Marks
	catalog *voice.Catalog
	policy  voice.Policy
	engine  *playback.Engine

	mu         sync.Mutex
	transcript *source.Transcript
	doc        *dom.Document
	builder    *chat.Builder
	cursor     chat.Cursor // where the current session's queue ends
	entries    []Entry
}

// New parses tr and prepares an idle engine over it. Voices are enumerated
// from load in the background; speakers read before that finishes get the
// synthesizer's default voice.
func New(ctx context.Context, tr *source.Transcript, synth playback.Synthesizer, load voice.Loader, opts Options) (*Reader, error) {
	if opts.Transform == nil {
		opts.Transform = chat.ShortenURLs
	}
	r := &Reader{
		opts:       opts,
		marks:      dom.NewMarks(),
		catalog:    voice.NewCatalog(load),
		transcript: tr,
	}
	if err := r.parse(); err != nil {
		return nil, err
	}
	if len(r.entries) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMessages, tr.Name)
	}

	if opts.Voice != "" {
		r.policy = &pinnedPolicy{catalog: r.catalog, key: opts.Voice}
	} else {
		r.policy = voice.NewHashPolicy(r.catalog)
	}
	r.engine = playback.NewEngine(playback.Config{Rate: opts.Rate}, synth, r.policy, r.marks)
	r.engine.SetBuilder(r.builder)

	if load != nil {
		go func() {
			if err := <-r.catalog.RefreshAsync(ctx); err != nil {
				log.Warn("unable to list voices", "err", err)
				return
			}
			log.Debug("voices loaded", "count", r.catalog.Len())
		}()
	}
	return r, nil
}

// parse rebuilds the document, builder and entry list from the transcript.
func (r *Reader) parse() error {
	doc, err := r.transcript.Document()
	if err != nil {
		return fmt.Errorf("unable to parse transcript: %w", err)
	}
	r.doc = doc
	r.builder = chat.NewBuilder(doc, r.opts.Selectors, r.opts.Transform)
	r.entries = entries(doc, r.opts.Selectors, r.opts.Transform)
	return nil
}

// entries lists every message of the first chat list in doc.
func entries(doc *dom.Document, sel chat.Selectors, transform chat.Transform) []Entry {
	items := doc.FindAll(sel.ListItem())
	if len(items) == 0 {
		return nil
	}
	ex := chat.NewExtractor(doc, sel)
	var (
		list []Entry
		st   chat.State
	)
	for id, ok := items[0], true; ok; id, ok = doc.NextElementSibling(id) {
		var msg chat.Message
		var found bool
		msg, st, found = ex.Extract(id, st)
		if !found {
			continue
		}
		list = append(list, Entry{
			Node:     id,
			Username: msg.Username,
			Text:     transform(msg.Text),
			Avatar:   msg.Avatar,
		})
	}
	return list
}

// Engine returns the playback engine.
func (r *Reader) Engine() *playback.Engine { return r.engine }

// Marks returns the visual marks the engine maintains.
func (r *Reader) Marks() *dom.Marks { return r.marks }

// Catalog returns the voice catalog.
func (r *Reader) Catalog() *voice.Catalog { return r.catalog }

// Policy returns the voice assignment policy.
func (r *Reader) Policy() voice.Policy { return r.policy }

// Name returns the transcript's display name.
func (r *Reader) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript.Name
}

// Entries returns the messages of the transcript.
func (r *Reader) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Script returns the reading queue that starting at node would produce.
func (r *Reader) Script(node dom.NodeID) []chat.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builder.Build(node)
}

// Start begins a new reading session at node.
func (r *Reader) Start(node dom.NodeID) {
	r.mu.Lock()
	records, cursor := r.builder.Walk(node, chat.State{})
	r.cursor = cursor
	r.mu.Unlock()

	log.Info("reading", "from", node, "messages", len(records))
	r.engine.StartRecords(records)
}

// Stop ends the session.
func (r *Reader) Stop() {
	r.mu.Lock()
	r.cursor = chat.Cursor{}
	r.mu.Unlock()
	r.engine.Stop()
}

// Reload re-reads a local transcript. Messages that arrived after the end
// of the running session's queue are appended to it.
func (r *Reader) Reload() error {
	r.mu.Lock()
	if err := r.transcript.Reload(); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.parse(); err != nil {
		r.mu.Unlock()
		return err
	}
	r.engine.SetBuilder(r.builder)

	var added []chat.Record
	if !r.cursor.Last.IsZero() && r.engine.Snapshot().Visible {
		added, r.cursor = r.builder.Resume(r.cursor)
	}
	r.mu.Unlock()

	log.Debug("transcript reloaded", "entries", len(r.Entries()), "appended", len(added))
	r.engine.Append(added)
	return nil
}

// Follow watches the transcript file and reloads it on every change until
// ctx ends. changed, when non-nil, is called after each reload.
func (r *Reader) Follow(ctx context.Context, changed func()) error {
	r.mu.Lock()
	path := r.transcript.Path
	r.mu.Unlock()
	if path == "" {
		return errors.New("follow mode needs a local transcript")
	}

	changes, err := source.Watch(ctx, path)
	if err != nil {
		return err
	}
	go func() {
		for range changes {
			if err := r.Reload(); err != nil {
				log.Warn("unable to reload transcript", "err", err)
				continue
			}
			if changed != nil {
				changed()
			}
		}
	}()
	return nil
}

// pinnedPolicy reads every speaker with one configured voice once the
// catalog knows it.
type pinnedPolicy struct {
	catalog *voice.Catalog
	key     string
}

func (p *pinnedPolicy) Assign(string) (voice.Voice, bool) {
	return p.catalog.Find(p.key)
}

func (p *pinnedPolicy) Reset() {}
