package logparser

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// timestampPattern matches Jenkins Timestamper prefixes.
// Formats: "[2016-06-07T20:28:20.776Z] " and "20:28:20 ".
var timestampPattern = regexp.MustCompile(`^(\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z\]|\d{2}:\d{2}:\d{2}(\.\d+)?) `)

// StripTimestamps removes a Jenkins Timestamper prefix from a line.
// Input:  "[2016-06-07T20:28:20.776Z] ERROR: boom"
// Output: "ERROR: boom"
func StripTimestamps(line string) string {
	return timestampPattern.ReplaceAllString(line, "")
}

// StripANSI removes ANSI escape sequences from a line.
func StripANSI(line string) string {
	return ansi.Strip(line)
}

// NormalizeLine makes a line presentable: carriage returns are dropped and
// tabs become two spaces.
func NormalizeLine(line string) string {
	line = strings.ReplaceAll(line, "\r", "")
	return strings.ReplaceAll(line, "\t", "  ")
}

// cleaner applies the optional strip steps configured on an extraction.
type cleaner struct {
	stripANSI       bool
	stripTimestamps bool
}

func (c cleaner) clean(text string) string {
	if c.stripANSI {
		text = StripANSI(text)
	}
	if c.stripTimestamps {
		text = StripTimestamps(text)
	}
	return text
}

// matchText is the form of a line that rules are tested against.
func (c cleaner) matchText(text string) string {
	return strings.TrimSuffix(c.clean(text), "\n")
}

// renderText is the form of a line written into an excerpt.
func (c cleaner) renderText(text string) string {
	return NormalizeLine(c.clean(text))
}
