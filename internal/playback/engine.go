package playback

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

// Config holds the engine settings.
type Config struct {
	Rate float64 // initial speech rate
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{Rate: DefaultRate}
}

// Engine is the playback state machine. All methods are safe for
// concurrent use. Observers registered with OnChange are notified after
// each transition, outside the engine lock, so two racing transitions may
// reach an observer out of order; Panel.Seq tells them apart.
type Engine struct {
	mu      sync.Mutex
	session Session
	gen     uint64
	seq     uint64 // transitions so far

	synth   Synthesizer
	policy  voice.Policy
	marks   Marker
	builder QueueBuilder

	listenersMu sync.Mutex
	listeners   []func(Panel)
}

// NewEngine returns an idle engine. A nil policy reads every speaker with
// the synthesizer's default voice; a nil marker gets a fresh dom.Marks.
func NewEngine(cfg Config, synth Synthesizer, policy voice.Policy, marks Marker) *Engine {
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if policy == nil {
		policy = voice.FixedPolicy{}
	}
	if marks == nil {
		marks = dom.NewMarks()
	}
	return &Engine{
		session: Session{Rate: cfg.Rate},
		synth:   synth,
		policy:  policy,
		marks:   marks,
	}
}

// SetBuilder sets the queue builder used by Start.
func (e *Engine) SetBuilder(b QueueBuilder) {
	e.mu.Lock()
	e.builder = b
	e.mu.Unlock()
}

// OnChange registers fn to receive a panel snapshot after every transition.
func (e *Engine) OnChange(fn func(Panel)) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenersMu.Unlock()
}

// Start begins a new session at start: the previous session is stopped,
// the queue is built from start and its sibling run, and reading begins.
func (e *Engine) Start(start dom.NodeID) {
	e.mu.Lock()
	b := e.builder
	e.mu.Unlock()
	if b == nil {
		log.Warn("start without a queue builder", "node", start)
		return
	}
	e.StartRecords(b.Build(start))
}

// StartRecords begins a new session over records.
func (e *Engine) StartRecords(records []chat.Record) {
	e.update(func(s *Session) {
		e.stopLocked()
		s.ID = uuid.New()
		s.Queue = append([]chat.Record(nil), records...)
		s.Visible = true
		log.Debug("session started", "session", s.ID, "records", len(records))
		e.advanceLocked()
	})
}

// Load replaces the queue without touching the utterance in flight.
func (e *Engine) Load(records []chat.Record) {
	e.update(func(s *Session) {
		s.Queue = append([]chat.Record(nil), records...)
		e.markOnDeckLocked()
	})
}

// Advance speaks the next queued record, dropping the one in flight. It
// does nothing while paused.
func (e *Engine) Advance() {
	e.update(func(s *Session) {
		if s.Paused {
			return
		}
		e.cancelLocked()
		e.advanceLocked()
	})
}

// Play resumes a paused utterance in place, or starts on the queue when
// nothing is being spoken.
func (e *Engine) Play() {
	e.update(func(s *Session) {
		switch {
		case s.Paused && s.task != nil:
			s.Paused = false
			s.task.Resume()
		case s.Paused:
			s.Paused = false
			e.advanceLocked()
		case s.task == nil && len(s.Queue) > 0:
			e.advanceLocked()
		}
	})
}

// Pause suspends the utterance in flight.
func (e *Engine) Pause() {
	e.update(func(s *Session) {
		if s.Paused {
			return
		}
		s.Paused = true
		if s.task != nil {
			s.task.Pause()
		}
	})
}

// TogglePause pauses a speaking session and plays otherwise.
func (e *Engine) TogglePause() {
	e.mu.Lock()
	speaking := !e.session.Paused && e.session.task != nil
	e.mu.Unlock()
	if speaking {
		e.Pause()
	} else {
		e.Play()
	}
}

// Rewind re-speaks the previously completed record, followed by the one
// that was interrupted. With nothing completed yet the current record
// starts over.
func (e *Engine) Rewind() {
	e.update(func(s *Session) {
		e.cancelLocked()

		var front []chat.Record
		if prev, ok := s.popHistory(); ok {
			front = append(front, prev)
		}
		if s.Current != nil {
			e.marks.Unmark(s.Current.Node, dom.MarkActive)
			front = append(front, *s.Current)
			s.Current = nil
		}
		if len(front) == 0 {
			return
		}
		s.Queue = append(front, s.Queue...)
		s.Paused = false
		e.advanceLocked()
	})
}

// Skip drops the current record and moves on to the next.
func (e *Engine) Skip() {
	e.update(func(s *Session) {
		e.cancelLocked()
		if s.Current != nil {
			e.marks.Unmark(s.Current.Node, dom.MarkActive)
			s.Current = nil
		}
		s.Paused = false
		e.advanceLocked()
	})
}

// Stop ends the session: the queue, marks and voice assignments are
// cleared and the panel is hidden.
func (e *Engine) Stop() {
	e.update(func(*Session) {
		e.stopLocked()
	})
}

// SetRate sets the rate of future utterances. The one in flight keeps its
// rate.
func (e *Engine) SetRate(r float64) error {
	if err := ValidateRate(r); err != nil {
		return err
	}
	e.update(func(s *Session) {
		s.Rate = r
	})
	return nil
}

// Faster moves the rate one step up.
func (e *Engine) Faster() {
	e.update(func(s *Session) {
		s.Rate = Faster(s.Rate)
	})
}

// Slower moves the rate one step down.
func (e *Engine) Slower() {
	e.update(func(s *Session) {
		s.Rate = Slower(s.Rate)
	})
}

// Append adds records to the tail of a running session's queue. An idle
// session starts on them; a stopped one ignores them.
func (e *Engine) Append(records []chat.Record) {
	if len(records) == 0 {
		return
	}
	e.update(func(s *Session) {
		if !s.Visible {
			return
		}
		s.Queue = append(s.Queue, records...)
		log.Debug("queue grew", "session", s.ID, "added", len(records), "queue", len(s.Queue))
		if s.Current == nil && !s.Paused {
			e.advanceLocked()
			return
		}
		e.markOnDeckLocked()
	})
}

// Snapshot returns the current panel state.
func (e *Engine) Snapshot() Panel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// update runs fn under the lock and notifies observers afterwards.
func (e *Engine) update(fn func(s *Session)) {
	e.mu.Lock()
	fn(&e.session)
	e.seq++
	p := e.snapshotLocked()
	e.mu.Unlock()

	e.listenersMu.Lock()
	listeners := slices.Clone(e.listeners)
	e.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}

func (e *Engine) advanceLocked() {
	s := &e.session
	if s.Paused {
		return
	}
	if s.Current != nil {
		e.marks.Unmark(s.Current.Node, dom.MarkActive)
		s.Current = nil
	}
	if len(s.Queue) == 0 {
		e.marks.UnmarkAll(dom.MarkOnDeck)
		log.Debug("queue drained", "session", s.ID)
		return
	}

	rec := s.Queue[0]
	s.Queue = s.Queue[1:]
	s.Current = &rec
	e.marks.Mark(rec.Node, dom.MarkActive)
	e.markOnDeckLocked()

	req := Request{
		Text:     rec.Text,
		Rate:     s.Rate,
		Username: rec.Username,
		Node:     rec.Node,
	}
	req.Voice, req.HasVoice = e.policy.Assign(rec.Username)

	e.gen++
	token := e.gen
	s.token = token
	log.Debug("advance", "session", s.ID, "node", rec.Node, "voice", req.Voice.ID, "queue", len(s.Queue))
	if e.synth == nil {
		return
	}
	s.task = e.synth.Speak(req, func() { e.complete(token) })
}

// complete handles natural completion of the task with the given token.
// Completions of cancelled or replaced tasks are ignored.
func (e *Engine) complete(token uint64) {
	e.update(func(s *Session) {
		if token != s.token || s.Current == nil {
			log.Debug("stale completion", "token", token, "current", s.token)
			return
		}
		e.marks.Unmark(s.Current.Node, dom.MarkActive)
		s.history = append(s.history, *s.Current)
		s.Current = nil
		s.task = nil
		s.token = 0
		e.advanceLocked()
	})
}

func (e *Engine) cancelLocked() {
	s := &e.session
	if s.task != nil {
		s.task.Cancel()
	}
	s.task = nil
	s.token = 0
}

func (e *Engine) stopLocked() {
	e.cancelLocked()
	if e.session.ID != uuid.Nil {
		log.Debug("session stopped", "session", e.session.ID)
	}
	e.session.reset()
	e.marks.UnmarkAll(dom.MarkActive, dom.MarkOnDeck)
	e.policy.Reset()
}

func (e *Engine) markOnDeckLocked() {
	e.marks.UnmarkAll(dom.MarkOnDeck)
	if len(e.session.Queue) > 0 {
		e.marks.Mark(e.session.Queue[0].Node, dom.MarkOnDeck)
	}
}
