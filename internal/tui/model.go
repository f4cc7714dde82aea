package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/cadastro/internal/state"
)

// CursorMarker is the prefix shown on the selected row.
const CursorMarker = "▸ "

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// browseKeys holds key bindings for the browser.
type browseKeys struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Quit   key.Binding
}

// ShortHelp returns the bindings for the help bar.
func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Top, k.Bottom, k.Quit}
}

// FullHelp returns the bindings grouped for expanded help.
func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Top, k.Bottom, k.Quit},
	}
}

// BrowseKeyMap returns the key bindings for the browser.
func BrowseKeyMap() browseKeys {
	return browseKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "first"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "last"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// BrowseModel is a read-only Bubble Tea model listing clients by CPF with
// a detail pane for the selected one.
type BrowseModel struct {
	entries state.Snapshot
	cursor  int
	width   int
	height  int
	keys    browseKeys
	help    help.Model
}

// NewBrowseModel creates a BrowseModel over a snapshot of the registry.
func NewBrowseModel(entries state.Snapshot) BrowseModel {
	return BrowseModel{
		entries: entries,
		keys:    BrowseKeyMap(),
		help:    help.New(),
	}
}

// Cursor returns the index of the selected entry.
func (m BrowseModel) Cursor() int {
	return m.cursor
}

// Selected returns the selected entry, if any.
func (m BrowseModel) Selected() (state.Entry, bool) {
	if len(m.entries) == 0 {
		return state.Entry{}, false
	}
	return m.entries[m.cursor], true
}

// Init returns the initial command.
func (m BrowseModel) Init() tea.Cmd {
	return nil
}

// Update handles window resizes and navigation keys.
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
		case key.Matches(msg, m.keys.Bottom):
			if len(m.entries) > 0 {
				m.cursor = len(m.entries) - 1
			}
		}
	}

	return m, nil
}

// contentHeight returns the usable height for pane content,
// accounting for border chrome and the help bar.
func (m BrowseModel) contentHeight() int {
	h := m.height - borderChrome - helpBarHeight
	if h < 1 {
		return 1
	}
	return h
}

// View renders the list and detail panes with the help bar.
func (m BrowseModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftWidth, rightWidth := PaneWidths(m.width)
	contentHeight := m.contentHeight()

	leftPane := FocusedBorder().
		Width(leftWidth - borderChrome).
		Height(contentHeight).
		Render(m.viewList(contentHeight))
	rightPane := UnfocusedBorder().
		Width(rightWidth - borderChrome).
		Height(contentHeight).
		Render(m.viewDetail())

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	return lipgloss.JoinVertical(lipgloss.Left, panes, m.help.View(m.keys))
}

// viewList renders the CPF column, scrolled so the cursor stays visible.
func (m BrowseModel) viewList(height int) string {
	if len(m.entries) == 0 {
		return EmptyMessage
	}

	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(start+height, len(m.entries))

	var b strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		prefix := "  "
		if i == m.cursor {
			prefix = CursorMarker
		}
		b.WriteString(prefix + m.entries[i].ID.String())
	}
	return b.String()
}

// viewDetail renders the selected client's fields.
func (m BrowseModel) viewDetail() string {
	e, ok := m.Selected()
	if !ok {
		return ""
	}
	label := lipgloss.NewStyle().Foreground(dimColor).Width(labelWidth)
	var b strings.Builder
	for i, f := range fields(e.ID, e.Client) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label.Render(f.label) + f.value)
	}
	fmt.Fprintf(&b, "\n\n%d of %d", m.cursor+1, len(m.entries))
	return b.String()
}
