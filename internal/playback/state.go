// Package playback drives the reading session: it pops utterances off the
// queue, marks the nodes being read and hands text to a synthesizer.
package playback

// State is the coarse state of the engine.
type State int

const (
	// StateIdle means nothing is being spoken.
	StateIdle State = iota
	// StateSpeaking means a synthesis task is in flight.
	StateSpeaking
	// StatePaused means the user paused the session.
	StatePaused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Icon returns a glyph for the state, used by the control panel.
func (s State) Icon() string {
	switch s {
	case StateSpeaking:
		return "▶"
	case StatePaused:
		return "⏸"
	default:
		return "■"
	}
}
