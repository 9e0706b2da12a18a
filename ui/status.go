package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/chatreader/internal/playback"
)

const panelHeight = 4 // border plus three lines

// panelView renders the control panel for p. It is empty when the panel is
// hidden.
func panelView(p playback.Panel, spin string, width int, showAvatar bool) string {
	if !p.Visible || width <= 0 {
		return ""
	}
	inner := max(0, width-2)

	// Line 1: state, speaker, rate.
	stateStyle := lipgloss.NewStyle().Foreground(stateColor(p.State)).Bold(true)
	state := stateStyle.Render(p.State.Icon() + " " + p.State.String())
	if p.State == playback.StateSpeaking && spin != "" {
		state += " " + spin
	}
	who := ""
	if p.Username != "" {
		who = speakerStyle(p.Username).Render(p.Username)
	}
	rate := faintStyle.Render(playback.RateLabel(p.Rate))
	gap := max(1, inner-ansi.PrintableRuneWidth(state)-ansi.PrintableRuneWidth(who)-ansi.PrintableRuneWidth(rate)-2)
	line1 := state + "  " + who + strings.Repeat(" ", gap) + rate

	// Line 2: progress.
	counter := " " + p.Progress()
	line2 := progressBar(p.Fraction, inner-len(counter), stateColor(p.State)) + faintStyle.Render(counter)

	// Line 3: what is being read, or the avatar when there is no text.
	text := p.Text
	if showAvatar && p.Avatar != "" {
		text = avatarStyle.Render(p.Avatar) + "  " + text
	}
	line3 := truncate.StringWithTail(text, uint(inner), ellipsis) //nolint:gosec

	return panelStyle.Width(width).Render(strings.Join([]string{line1, line2, line3}, "\n"))
}

// progressBar renders fraction as a bar of width cells.
func progressBar(fraction float64, width int, color lipgloss.TerminalColor) string {
	if width < 10 {
		return ""
	}
	filled := int(fraction * float64(width))
	filled = min(max(filled, 0), width)

	filledStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	return filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled))
}

// compactStatus is the reading state shown in the status bar.
func compactStatus(p playback.Panel) string {
	if !p.Visible {
		return ""
	}
	return fmt.Sprintf("%s %s", p.State.Icon(), p.Progress())
}
