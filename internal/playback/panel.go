package playback

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/dom"
)

// Panel is the read-only view of the engine shown by the control panel.
type Panel struct {
	// Seq grows with every transition. Of two panels the one with the
	// larger Seq is the more recent.
	Seq uint64

	SessionID string
	State     State
	Visible   bool

	// Speaker of the current record, or of the last one read when idle.
	Username string
	Avatar   string
	Text     string

	Done     int     // nodes marked active
	Total    int     // queue length plus the current record
	Fraction float64 // Done / Total
	Rate     float64

	Current    *chat.Record
	Next       *chat.Record
	LastSpoken *chat.Record
	Remaining  int
}

// Progress returns the done/total pair as text.
func (p Panel) Progress() string {
	return fmt.Sprintf("%d/%d", p.Done, p.Total)
}

func (e *Engine) snapshotLocked() Panel {
	s := &e.session

	p := Panel{
		Seq:        e.seq,
		Visible:    s.Visible,
		Rate:       s.Rate,
		Remaining:  len(s.Queue),
		LastSpoken: s.LastSpoken(),
	}
	if s.ID != uuid.Nil {
		p.SessionID = s.ID.String()
	}

	switch {
	case s.Paused:
		p.State = StatePaused
	case s.Current != nil:
		p.State = StateSpeaking
	default:
		p.State = StateIdle
	}

	shown := p.LastSpoken
	if s.Current != nil {
		cur := *s.Current
		p.Current = &cur
		shown = p.Current
	}
	if shown != nil {
		p.Username = shown.Speaker()
		p.Avatar = shown.Avatar
		p.Text = shown.Text
	}
	if len(s.Queue) > 0 {
		next := s.Queue[0]
		p.Next = &next
	}

	p.Done = e.marks.Count(dom.MarkActive)
	p.Total = len(s.Queue) + 1
	p.Fraction = float64(p.Done) / float64(p.Total)
	return p
}
