package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/chatreader/internal/dom"
	"github.com/dgnsrekt/chatreader/internal/reader"
)

// pagerModel is the transcript pane: one line per message, a cursor, and
// the reading marks.
type pagerModel struct {
	viewport viewport.Model
	marks    *dom.Marks

	entries []reader.Entry
	visible []int // indices into entries that pass the filter
	cursor  int   // index into visible
	filter  string
}

func newPagerModel(marks *dom.Marks, highPerformance bool) pagerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	vp.HighPerformanceRendering = highPerformance //nolint:staticcheck
	return pagerModel{viewport: vp, marks: marks}
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = max(0, h)
	m.render()
}

// setEntries replaces the message list, keeping the cursor on the same
// message when it still exists.
func (m *pagerModel) setEntries(entries []reader.Entry) {
	var node dom.NodeID
	if e, ok := m.selected(); ok {
		node = e.Node
	}
	m.entries = entries
	m.applyFilter()
	if node != "" {
		m.selectNode(node)
	}
	m.render()
}

// setFilter narrows the list to messages matching term.
func (m *pagerModel) setFilter(term string) {
	m.filter = term
	m.cursor = 0
	m.applyFilter()
	m.viewport.GotoTop()
	m.render()
}

func (m *pagerModel) applyFilter() {
	m.visible = m.visible[:0]
	if m.filter == "" {
		for i := range m.entries {
			m.visible = append(m.visible, i)
		}
	} else {
		targets := make([]string, len(m.entries))
		for i, e := range m.entries {
			targets[i] = e.Username + " " + e.Text
		}
		for _, match := range fuzzy.Find(m.filter, targets) {
			m.visible = append(m.visible, match.Index)
		}
	}
	m.cursor = min(m.cursor, max(0, len(m.visible)-1))
}

func (m *pagerModel) selectNode(node dom.NodeID) {
	for i, idx := range m.visible {
		if m.entries[idx].Node == node {
			m.cursor = i
			return
		}
	}
}

func (m pagerModel) selected() (reader.Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return reader.Entry{}, false
	}
	return m.entries[m.visible[m.cursor]], true
}

func (m *pagerModel) moveCursor(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.visible)-1)
	m.ensureVisible()
	m.render()
}

func (m *pagerModel) ensureVisible() {
	h := m.viewport.Height
	if h <= 0 {
		return
	}
	switch {
	case m.cursor < m.viewport.YOffset:
		m.viewport.SetYOffset(m.cursor)
	case m.cursor >= m.viewport.YOffset+h:
		m.viewport.SetYOffset(m.cursor - h + 1)
	}
}

// entryAt maps a screen row to a position in the visible list.
func (m pagerModel) entryAt(y int) (int, bool) {
	i := m.viewport.YOffset + y - m.viewport.YPosition
	if y < m.viewport.YPosition || i < 0 || i >= len(m.visible) {
		return 0, false
	}
	return i, true
}

// render rebuilds the viewport content. Offsets are preserved.
func (m *pagerModel) render() {
	offset := m.viewport.YOffset
	var b strings.Builder
	for i, idx := range m.visible {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.lineView(m.entries[idx], i == m.cursor))
	}
	if len(m.visible) == 0 {
		b.WriteString(faintStyle.Render("  No messages match."))
	}
	m.viewport.SetContent(b.String())
	m.viewport.SetYOffset(offset)
}

func (m pagerModel) lineView(e reader.Entry, selected bool) string {
	prefix := "  "
	if selected {
		prefix = cursorStyle.Render("› ")
	}

	name := e.Username
	if name == "" {
		name = "Anonymous"
	}
	nameWidth := runewidth.StringWidth(name) + 2
	avail := max(0, m.viewport.Width-2-nameWidth)
	text := truncate.StringWithTail(e.Text, uint(avail), ellipsis) //nolint:gosec

	mark, _ := m.marks.Get(e.Node)
	switch mark {
	case dom.MarkActive:
		text = activeStyle.Render(text)
	case dom.MarkOnDeck:
		text = onDeckStyle.Render(text)
	}
	return prefix + speakerStyle(e.Username).Render(name) + ": " + text
}

func (m pagerModel) View() string {
	return m.viewport.View()
}
