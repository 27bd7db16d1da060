package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"
	"github.com/newhook/pipereport/internal/logparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zone.NewGlobal()
}

func sampleExcerpts() logparser.Excerpts {
	var excerpts logparser.Excerpts
	for i := range 3 {
		var sb strings.Builder
		for j := range 5 {
			fmt.Fprintf(&sb, "block %d line %d\n", i, j)
		}
		excerpts = append(excerpts, logparser.Excerpt{Line: 1 + i*100, Text: sb.String()})
	}
	return excerpts
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderContent(t *testing.T) {
	content, offsets := renderContent(sampleExcerpts(), 80)

	// Header, five lines, and a blank separator per block.
	assert.Equal(t, []int{0, 7, 14}, offsets)
	plain := ansi.Strip(content)
	assert.Contains(t, plain, "line 101")
	assert.Contains(t, plain, "205 │ block 2 line 4")
}

func TestRenderContent_Truncates(t *testing.T) {
	excerpts := logparser.Excerpts{{Line: 1, Text: strings.Repeat("x", 100) + "\n"}}
	content, _ := renderContent(excerpts, 30)
	for _, line := range strings.Split(strings.TrimRight(ansi.Strip(content), "\n"), "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 30)
	}
}

func TestModel_BlockNavigation(t *testing.T) {
	m := NewWithExcerpts("job/app/12", sampleExcerpts())
	m.SetSize(100, 8)

	assert.Equal(t, 0, m.Selected())

	m.Update(key("j"))
	assert.Equal(t, 1, m.Selected())
	assert.Equal(t, 7, m.YOffset())

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.Selected())

	m.Update(key("j"))
	assert.Equal(t, 2, m.Selected(), "selection stops at the last block")

	m.Update(key("k"))
	assert.Equal(t, 1, m.Selected())

	m.Update(key("g"))
	assert.Equal(t, 0, m.Selected())
	assert.Equal(t, 0, m.YOffset())

	m.Update(key("G"))
	assert.Equal(t, 2, m.Selected())
}

func TestModel_PageScroll(t *testing.T) {
	m := NewWithExcerpts("job/app/12", sampleExcerpts())
	m.SetSize(100, 6)

	m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, 4, m.YOffset())

	m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	assert.Equal(t, 0, m.YOffset())
}

func TestModel_Quit(t *testing.T) {
	m := NewWithExcerpts("job/app/12", nil)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_Loading(t *testing.T) {
	m := New("job/app/12", func() (logparser.Excerpts, error) {
		return sampleExcerpts(), nil
	})
	require.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Loading")

	m.Update(excerptsLoadedMsg{excerpts: sampleExcerpts()})
	m.SetSize(100, 10)
	view := ansi.Strip(m.View())
	assert.Contains(t, view, "block 1/3")
	assert.Contains(t, view, "line 201")
}

func TestModel_LoadError(t *testing.T) {
	m := New("job/app/12", nil)
	m.Update(excerptsLoadedMsg{err: errors.New("no such run")})

	assert.Contains(t, ansi.Strip(m.View()), "Error: no such run")
}

func TestModel_Empty(t *testing.T) {
	m := NewWithExcerpts("job/app/12", nil)
	m.SetSize(80, 10)

	assert.Nil(t, m.Init())
	m.Update(key("j"))
	assert.Equal(t, 0, m.Selected())
	assert.Contains(t, ansi.Strip(m.View()), "No excerpts.")
}
