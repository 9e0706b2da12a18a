package ui

import "github.com/dgnsrekt/chatreader/internal/dom"

// Config contains TUI-specific configuration.
type Config struct {
	EnableMouse bool
	Follow      bool // reload the transcript when it changes on disk
	InputTTY    bool // read keys from the terminal because stdin carries the transcript

	// Start, when set, begins reading at this message right away.
	Start dom.NodeID

	// For debugging the UI
	HighPerformancePager bool `env:"CHATREADER_HIGH_PERFORMANCE_PAGER" envDefault:"false"`
	ShowAvatars          bool `env:"CHATREADER_SHOW_AVATARS"           envDefault:"true"`
}
