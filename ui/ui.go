// Package ui provides the control panel of chatreader: a transcript pane
// to pick where reading starts, and a panel that shows and drives the
// playback engine.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/chatreader/internal/playback"
	"github.com/dgnsrekt/chatreader/internal/reader"
)

const (
	statusMessageTimeout = time.Second * 3
	statusBarHeight      = 1
	ellipsis             = "…"
)

// NewProgram returns a new Tea program reading r.
func NewProgram(ctx context.Context, cfg Config, r *reader.Reader) *tea.Program {
	log.Debug("starting chatreader ui", "high_perf_pager", cfg.HighPerformancePager, "follow", cfg.Follow)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	if cfg.InputTTY {
		opts = append(opts, tea.WithInputTTY())
	}
	m := newModel(ctx, cfg, r)
	return tea.NewProgram(m, opts...)
}

type (
	panelMsg                playback.Panel
	reloadMsg               struct{}
	statusMessageTimeoutMsg struct{}
)

// feed hands engine snapshots to the program without ever blocking the
// engine. Only the most recent snapshot by Seq is kept.
type feed struct {
	panels  chan playback.Panel
	reloads chan struct{}

	mu   sync.Mutex
	last uint64
}

func newFeed() *feed {
	return &feed{
		panels:  make(chan playback.Panel, 1),
		reloads: make(chan struct{}, 1),
	}
}

func (f *feed) push(p playback.Panel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Seq < f.last {
		return
	}
	f.last = p.Seq
	for {
		select {
		case f.panels <- p:
			return
		default:
		}
		select {
		case <-f.panels:
		default:
		}
	}
}

func (f *feed) reloaded() {
	select {
	case f.reloads <- struct{}{}:
	default:
	}
}

func waitForPanel(f *feed) tea.Cmd {
	return func() tea.Msg {
		return panelMsg(<-f.panels)
	}
}

func waitForReload(f *feed) tea.Cmd {
	return func() tea.Msg {
		<-f.reloads
		return reloadMsg{}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

type model struct {
	ctx    context.Context
	cfg    Config
	reader *reader.Reader
	engine *playback.Engine
	feed   *feed

	width  int
	height int

	pager     pagerModel
	panel     playback.Panel
	spinner   spinner.Model
	filter    textinput.Model
	filtering bool
	showHelp  bool

	statusMessage      string
	statusMessageTimer *time.Timer
}

func newModel(ctx context.Context, cfg Config, r *reader.Reader) model {
	f := newFeed()
	r.Engine().OnChange(f.push)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = faintStyle

	ti := textinput.New()
	ti.Prompt = filterPrompt + " "
	ti.Placeholder = "username or text"
	ti.CharLimit = 256

	m := model{
		ctx:     ctx,
		cfg:     cfg,
		reader:  r,
		engine:  r.Engine(),
		feed:    f,
		pager:   newPagerModel(r.Marks(), cfg.HighPerformancePager),
		panel:   r.Engine().Snapshot(),
		spinner: sp,
		filter:  ti,
	}
	m.pager.setEntries(r.Entries())
	if cfg.Start != "" {
		m.pager.selectNode(cfg.Start)
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForPanel(m.feed), m.spinner.Tick}
	if m.cfg.Follow {
		if err := m.reader.Follow(m.ctx, m.feed.reloaded); err != nil {
			log.Error("unable to follow transcript", "error", err)
		} else {
			cmds = append(cmds, waitForReload(m.feed))
		}
	}
	if m.cfg.Start != "" {
		start := m.cfg.Start
		cmds = append(cmds, func() tea.Msg {
			m.reader.Start(start)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.MouseMsg:
		// ctrl+click starts reading at the clicked message.
		if msg.Ctrl && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			if i, ok := m.pager.entryAt(msg.Y); ok {
				m.pager.cursor = i
				m.pager.render()
				return m, m.startAtCursor()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.Width = max(0, msg.Width-10)
		m.resize()

	case panelMsg:
		if p := playback.Panel(msg); p.Seq >= m.panel.Seq {
			m.panel = p
		}
		m.resize()
		m.pager.render()
		cmds = append(cmds, waitForPanel(m.feed))
		if m.cfg.HighPerformancePager {
			cmds = append(cmds, viewport.Sync(m.pager.viewport)) //nolint:staticcheck
		}
		return m, tea.Batch(cmds...)

	case reloadMsg:
		m.pager.setEntries(m.reader.Entries())
		return m, waitForReload(m.feed)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
	}

	var cmd tea.Cmd
	m.pager.viewport, cmd = m.pager.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey runs the key bindings of the transcript pane and the panel.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit, true
	case "ctrl+z":
		return tea.Suspend, true

	case "up", "k":
		m.pager.moveCursor(-1)
	case "down", "j":
		m.pager.moveCursor(1)
	case "pgup", "b":
		m.pager.moveCursor(-m.pager.viewport.Height)
	case "pgdown", "f":
		m.pager.moveCursor(m.pager.viewport.Height)
	case "home", "g":
		m.pager.moveCursor(-len(m.pager.visible))
	case "end", "G":
		m.pager.moveCursor(len(m.pager.visible))

	case "enter":
		return m.startAtCursor(), true
	case " ":
		if !m.panel.Visible {
			return m.startAtCursor(), true
		}
		m.engine.TogglePause()
	case "left", "h":
		m.engine.Rewind()
	case "right", "l":
		m.engine.Skip()
	case "s":
		m.reader.Stop()
	case "+", "=":
		m.engine.Faster()
	case "-", "_":
		m.engine.Slower()

	case "/":
		m.filtering = true
		m.resize()
		return m.filter.Focus(), true
	case "esc":
		switch {
		case m.showHelp:
			m.showHelp = false
			m.resize()
		case m.pager.filter != "":
			m.filter.SetValue("")
			m.pager.setFilter("")
		}
	case "y":
		return m.copyCurrent(), true
	case "r":
		if err := m.reader.Reload(); err != nil {
			return m.showStatusMessage("Reload failed: " + err.Error()), true
		}
		m.pager.setEntries(m.reader.Entries())
		return m.showStatusMessage("Reloaded"), true
	case "?":
		m.showHelp = !m.showHelp
		m.resize()
	default:
		return nil, false
	}
	return nil, true
}

func (m model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.pager.setFilter("")
		m.resize()
		return m, nil
	case "enter", "tab", "up", "down":
		m.filtering = false
		m.filter.Blur()
		m.resize()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if v := strings.TrimSpace(m.filter.Value()); v != m.pager.filter {
		m.pager.setFilter(v)
	}
	return m, cmd
}

func (m *model) startAtCursor() tea.Cmd {
	e, ok := m.pager.selected()
	if !ok {
		return nil
	}
	log.Debug("start reading", "node", e.Node)
	m.reader.Start(e.Node)
	return nil
}

func (m *model) copyCurrent() tea.Cmd {
	text := m.panel.Text
	if m.panel.Current == nil {
		if e, ok := m.pager.selected(); ok {
			text = e.Text
		}
	}
	if text == "" {
		return nil
	}
	// Copy using OSC 52
	termenv.Copy(text)
	// Copy using native system clipboard
	_ = clipboard.WriteAll(text)
	return m.showStatusMessage("Copied message")
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusMessage = s
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

// resize lays the panes out: transcript, panel, status bar, help.
func (m *model) resize() {
	h := m.height - statusBarHeight
	if m.panel.Visible {
		h -= panelHeight
	}
	if m.showHelp {
		h -= strings.Count(m.helpView(), "\n") + 1
	}
	m.pager.setSize(m.width, h)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(m.pager.View())
	if p := panelView(m.panel, m.spinner.View(), m.width, m.cfg.ShowAvatars); p != "" {
		b.WriteString("\n" + p)
	}
	b.WriteString("\n" + m.statusBarView())
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m model) statusBarView() string {
	logo := appLogoView()
	if m.filtering {
		return logo + " " + m.filter.View()
	}

	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
	case m.pager.filter != "":
		note = fmt.Sprintf("%s | %d matching %q", m.reader.Name(), len(m.pager.visible), m.pager.filter)
	default:
		note = m.reader.Name()
		if s := compactStatus(m.panel); s != "" {
			note += " | " + s
		}
	}

	avail := max(0, m.width-ansi.PrintableRuneWidth(logo)-ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec
	padding := strings.Repeat(" ", max(0, avail-ansi.PrintableRuneWidth(note)))

	style := statusBarNoteStyle
	if m.statusMessage != "" {
		style = statusBarMessageStyle
	}
	return logo + style(note+padding) + helpNote
}

func (m model) helpView() string {
	s := "\n"
	s += "k/↑      up                  enter    read from here\n"
	s += "j/↓      down                space    play/pause\n"
	s += "b/pgup   page up             h/←      rewind\n"
	s += "f/pgdn   page down           l/→      skip\n"
	s += "g/home   go to top           s        stop\n"
	s += "G/end    go to bottom        +/-      rate\n"
	s += "/        find                y        copy message\n"
	s += "r        reload              q        quit"
	if m.cfg.EnableMouse {
		s += "\n\nctrl+click a message to read from it"
	}

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := range lines {
			n := max(m.width-runewidth.StringWidth(lines[i]), 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}
	return helpViewStyle(s)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
