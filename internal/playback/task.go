package playback

import (
	"github.com/dgnsrekt/chatreader/internal/chat"
	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

// Request is one utterance handed to a Synthesizer.
type Request struct {
	Text     string
	Voice    voice.Voice
	HasVoice bool // false means the synthesizer's default voice
	Rate     float64
	Username string
	Node     dom.NodeID
}

// Task is an in-flight synthesis.
type Task interface {
	Pause()
	Resume()
	// Cancel stops the task. The completion callback of a cancelled task
	// must not run.
	Cancel()
}

// Synthesizer speaks requests.
//
// Speak is called with the engine lock held: it must return promptly and
// must never call onEnd before returning. onEnd is called once the audio
// has finished playing, from any goroutine.
type Synthesizer interface {
	Speak(req Request, onEnd func()) Task
}

// Marker puts the visual marks on transcript nodes. dom.Marks implements
// it.
type Marker interface {
	Mark(id dom.NodeID, mark dom.Mark)
	Unmark(id dom.NodeID, mark dom.Mark)
	UnmarkAll(marks ...dom.Mark)
	Count(mark dom.Mark) int
}

// QueueBuilder turns a starting node into a reading queue. chat.Builder
// implements it.
type QueueBuilder interface {
	Build(start dom.NodeID) []chat.Record
}
