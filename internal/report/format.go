package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/newhook/pipereport/internal/logparser"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	gutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// FormatText writes excerpts with a header per block and numbered lines.
// Lines wider than width are truncated; width <= 0 disables truncation.
func FormatText(w io.Writer, excerpts logparser.Excerpts, width int) error {
	if len(excerpts) == 0 {
		_, err := fmt.Fprintln(w, "No excerpts.")
		return err
	}

	for i, ex := range excerpts {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("--- line %d ---", ex.Line))); err != nil {
			return err
		}

		lines := strings.Split(strings.TrimSuffix(ex.Text, "\n"), "\n")
		numWidth := len(fmt.Sprint(ex.Line + len(lines) - 1))
		for j, line := range lines {
			gutter := fmt.Sprintf("%*d | ", numWidth, ex.Line+j)
			if width > 0 {
				line = truncate.StringWithTail(line, uint(max(width-len(gutter), 1)), "...")
			}
			if _, err := fmt.Fprintln(w, gutterStyle.Render(gutter)+line); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatJSON writes excerpts as a JSON object keyed by starting line.
func FormatJSON(w io.Writer, excerpts logparser.Excerpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(excerpts.Map())
}
