package logparser

import "strings"

// Line is a single console line. Text keeps its line terminator.
type Line struct {
	Index int
	Text  string
}

// SplitLines splits text into lines, keeping each line's trailing newline.
// Empty input yields no lines.
func SplitLines(text string) []Line {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	lines := make([]Line, len(parts))
	for i, p := range parts {
		lines[i] = Line{Index: i, Text: p}
	}
	return lines
}
