package playback

import (
	"github.com/google/uuid"

	"github.com/dgnsrekt/chatreader/internal/chat"
)

// Session is the mutable state of one reading session. Only the Engine
// touches it.
type Session struct {
	ID      uuid.UUID
	Queue   []chat.Record // never holds Current
	Current *chat.Record
	Paused  bool
	Rate    float64
	Visible bool

	// history holds the records that finished playing, most recent last.
	history []chat.Record

	token uint64 // generation of task, 0 when none
	task  Task
}

// LastSpoken returns the most recently completed record.
func (s *Session) LastSpoken() *chat.Record {
	if len(s.history) == 0 {
		return nil
	}
	r := s.history[len(s.history)-1]
	return &r
}

// popHistory removes and returns the most recently completed record.
func (s *Session) popHistory() (chat.Record, bool) {
	n := len(s.history)
	if n == 0 {
		return chat.Record{}, false
	}
	r := s.history[n-1]
	s.history = s.history[:n-1]
	return r, true
}

// reset clears every field but the rate.
func (s *Session) reset() {
	*s = Session{Rate: s.Rate}
}
