// Package tui provides an interactive viewer for extracted excerpts.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/truncate"
	"github.com/newhook/pipereport/internal/logparser"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	gutterStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	listStyle     = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

const listWidth = 18

// LoadFunc produces the excerpts shown by the viewer.
type LoadFunc func() (logparser.Excerpts, error)

type excerptsLoadedMsg struct {
	excerpts logparser.Excerpts
	err      error
}

// Model is the bubbletea model of the excerpt viewer.
type Model struct {
	title string
	load  LoadFunc

	excerpts logparser.Excerpts
	// offsets[i] is the content line where block i's header starts.
	offsets  []int
	selected int

	width    int
	height   int
	viewport viewport.Model
	spinner  spinner.Model
	loading  bool
	err      error

	zonePrefix string
}

// New creates a viewer that loads its excerpts with load.
func New(title string, load LoadFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	vp := viewport.New(40, 20)
	vp.MouseWheelEnabled = true

	return &Model{
		title:      title,
		load:       load,
		width:      80,
		height:     24,
		viewport:   vp,
		spinner:    s,
		loading:    true,
		zonePrefix: zone.NewPrefix(),
	}
}

// NewWithExcerpts creates a viewer over excerpts that are already loaded.
func NewWithExcerpts(title string, excerpts logparser.Excerpts) *Model {
	m := New(title, nil)
	m.setExcerpts(excerpts)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if !m.loading || m.load == nil {
		return nil
	}
	load := m.load
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		excerpts, err := load()
		return excerptsLoadedMsg{excerpts: excerpts, err: err}
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case excerptsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setExcerpts(msg.excerpts)
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			for i := range m.excerpts {
				if zone.Get(m.blockZone(i)).InBounds(msg) {
					m.Select(i)
					return m, nil
				}
			}
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "j", "down", "n":
		m.Select(m.selected + 1)
	case "k", "up", "p":
		m.Select(m.selected - 1)
	case "g", "home":
		m.Select(0)
	case "G", "end":
		m.Select(len(m.excerpts) - 1)
	case "pgdown", " ", "f":
		m.viewport.PageDown()
	case "pgup", "b":
		m.viewport.PageUp()
	}
	return m, nil
}

// SetSize updates the viewer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	// Title line plus footer line.
	m.viewport.Height = max(height-2, 1)
	m.viewport.Width = max(width-listWidth-3, 10)
	m.refresh()
}

// Selected returns the index of the selected block.
func (m *Model) Selected() int {
	return m.selected
}

// Select moves to block i, clamped to the available blocks, and scrolls its
// header to the top of the viewport.
func (m *Model) Select(i int) {
	if len(m.excerpts) == 0 {
		m.selected = 0
		return
	}
	m.selected = max(0, min(i, len(m.excerpts)-1))
	m.viewport.SetYOffset(m.offsets[m.selected])
}

// YOffset returns the viewport scroll position.
func (m *Model) YOffset() int {
	return m.viewport.YOffset
}

func (m *Model) setExcerpts(excerpts logparser.Excerpts) {
	m.excerpts = excerpts
	m.loading = false
	m.selected = 0
	m.refresh()
}

// refresh re-renders the viewport content for the current width.
func (m *Model) refresh() {
	content, offsets := renderContent(m.excerpts, m.viewport.Width)
	m.offsets = offsets
	m.viewport.SetContent(content)
	if len(offsets) > 0 {
		m.viewport.SetYOffset(offsets[m.selected])
	}
}

// renderContent lays out every block with a header and numbered lines.
func renderContent(excerpts logparser.Excerpts, width int) (string, []int) {
	var sb strings.Builder
	offsets := make([]int, len(excerpts))
	line := 0
	for i, ex := range excerpts {
		offsets[i] = line
		sb.WriteString(headerStyle.Render(fmt.Sprintf("── line %d ", ex.Line)))
		sb.WriteString("\n")
		line++

		lines := strings.Split(strings.TrimSuffix(ex.Text, "\n"), "\n")
		numWidth := len(fmt.Sprint(ex.Line + len(lines) - 1))
		for j, text := range lines {
			gutter := fmt.Sprintf("%*d │ ", numWidth, ex.Line+j)
			text = ansi.Truncate(text, max(width-ansi.StringWidth(gutter), 1), "…")
			sb.WriteString(gutterStyle.Render(gutter) + text + "\n")
			line++
		}
		sb.WriteString("\n")
		line++
	}
	return sb.String(), offsets
}

func (m *Model) blockZone(i int) string {
	return fmt.Sprintf("%sblock-%d", m.zonePrefix, i)
}

// renderList draws the clickable list of block start lines.
func (m *Model) renderList(height int) string {
	var sb strings.Builder
	// Keep the selection visible when there are more blocks than rows.
	first := max(0, m.selected-height+1)
	for i := first; i < len(m.excerpts) && i < first+height; i++ {
		label := fmt.Sprintf("line %d", m.excerpts[i].Line)
		if i == m.selected {
			label = selectedStyle.Render("> " + label)
		} else {
			label = dimStyle.Render("  " + label)
		}
		sb.WriteString(zone.Mark(m.blockZone(i), label))
		if i < len(m.excerpts)-1 {
			sb.WriteString("\n")
		}
	}
	return listStyle.Width(listWidth).Height(height).Render(sb.String())
}

// View implements tea.Model.
func (m *Model) View() string {
	title := titleStyle.Render(truncate.StringWithTail(m.title, uint(max(m.width-20, 10)), "..."))

	var body string
	switch {
	case m.loading:
		body = m.spinner.View() + " Loading excerpts..."
	case m.err != nil:
		body = errorStyle.Render("Error: " + m.err.Error())
	case len(m.excerpts) == 0:
		body = dimStyle.Render("No excerpts.")
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(m.viewport.Height), " ", m.viewport.View())
	}

	footer := dimStyle.Render(fmt.Sprintf("block %d/%d  j/k: block  pgup/pgdn: scroll  q: quit",
		min(m.selected+1, len(m.excerpts)), len(m.excerpts)))

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left, title, body, footer))
}

// Run starts the viewer in the alternate screen and blocks until it exits.
func Run(model *Model) error {
	zone.NewGlobal()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run viewer: %w", err)
	}
	return nil
}
