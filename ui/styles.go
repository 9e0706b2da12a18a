package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/chatreader/internal/playback"
	"github.com/dgnsrekt/chatreader/internal/voice"
)

var (
	green     = lipgloss.Color("#04B575")
	fuchsia   = lipgloss.Color("#EE6FF8")
	cream     = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	dimGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(fuchsia).
			Bold(true).
			Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	// reading-now
	activeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	// reading-next
	onDeckStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#8B8000", Dark: "#F1E05A"}).
			Underline(true)

	cursorStyle  = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	avatarStyle  = lipgloss.NewStyle().Foreground(dimGray)
	faintStyle   = lipgloss.NewStyle().Foreground(gray)
	filterPrompt = lipgloss.NewStyle().Foreground(green).Render("Find:")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true, false, false, false).
			BorderForeground(dimGray).
			Padding(0, 1)

	// Speakers are colored the same way they are assigned voices.
	speakerColors = []lipgloss.AdaptiveColor{
		{Light: "#1C8760", Dark: "#04B575"},
		{Light: "#9B2FAE", Dark: "#EE6FF8"},
		{Light: "#0A6FC2", Dark: "#6EC1FF"},
		{Light: "#B35A00", Dark: "#FFA657"},
		{Light: "#A4161A", Dark: "#FF6B6B"},
		{Light: "#5A4FCF", Dark: "#B2A4FF"},
	}
)

func speakerStyle(username string) lipgloss.Style {
	if username == "" {
		return faintStyle
	}
	return lipgloss.NewStyle().
		Foreground(speakerColors[voice.Index(username, len(speakerColors))]).
		Bold(true)
}

func stateColor(s playback.State) lipgloss.TerminalColor {
	switch s {
	case playback.StateSpeaking:
		return green
	case playback.StatePaused:
		return lipgloss.Color("#FFFF00")
	default:
		return gray
	}
}

func appLogoView() string {
	return logoStyle(" chatreader ")
}
