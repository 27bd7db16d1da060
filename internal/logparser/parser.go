// Package logparser extracts the diagnostically relevant parts of a build
// console log as a small set of line-numbered excerpts.
package logparser

import "strings"

// DefaultRadius is the number of context lines kept around a failure line.
const DefaultRadius = 2

// Excerpt is the text of one merged block, keyed by its 1-based first line.
type Excerpt struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Excerpts is an ordered list of excerpts with strictly increasing Line.
type Excerpts []Excerpt

// Map returns the excerpts keyed by starting line number.
func (e Excerpts) Map() map[int]string {
	m := make(map[int]string, len(e))
	for _, ex := range e {
		m[ex.Line] = ex.Text
	}
	return m
}

// LineCount returns the total number of lines across all excerpts.
func (e Excerpts) LineCount() int {
	n := 0
	for _, ex := range e {
		n += strings.Count(ex.Text, "\n")
		if ex.Text != "" && !strings.HasSuffix(ex.Text, "\n") {
			n++
		}
	}
	return n
}

// Result is the outcome of an extraction together with scan statistics.
type Result struct {
	Excerpts Excerpts
	Lines    int
	// Hits counts matched lines per rule name. A line matching several
	// rules counts once for each.
	Hits map[string]int
}

type options struct {
	radius int
	rules  []Rule
	clean  cleaner
}

// Option configures an extraction.
type Option func(*options)

// WithRadius sets the number of context lines around a match.
// Negative values are treated as 0.
func WithRadius(n int) Option {
	return func(o *options) {
		o.radius = max(n, 0)
	}
}

// WithRules replaces the rule table.
func WithRules(rules []Rule) Option {
	return func(o *options) {
		o.rules = rules
	}
}

// WithStripANSI strips ANSI escape codes before matching and rendering.
func WithStripANSI(strip bool) Option {
	return func(o *options) {
		o.clean.stripANSI = strip
	}
}

// WithStripTimestamps strips Timestamper prefixes before matching and rendering.
func WithStripTimestamps(strip bool) Option {
	return func(o *options) {
		o.clean.stripTimestamps = strip
	}
}

// extraction holds the per-call state of one pass over a log.
type extraction struct {
	lines  []Line
	texts  []string
	radius int
	marker BlockMarker
}

// Extract returns the excerpts of consoleText worth showing.
func Extract(consoleText string, opts ...Option) Excerpts {
	return Analyze(consoleText, opts...).Excerpts
}

// Analyze runs a single pass over consoleText and returns the excerpts along
// with the number of lines and how often each rule fired.
func Analyze(consoleText string, opts ...Option) *Result {
	o := options{radius: DefaultRadius, rules: defaultRules}
	for _, opt := range opts {
		opt(&o)
	}

	lines := SplitLines(consoleText)
	x := &extraction{
		lines:  lines,
		texts:  make([]string, len(lines)),
		radius: o.radius,
	}
	for i, l := range lines {
		x.texts[i] = o.clean.matchText(l.Text)
	}

	hits := make(map[string]int)
	var omnibus OmnibusState
	for i, text := range x.texts {
		var marks []Range
		omnibus, marks = omnibus.Step(i, text)
		for _, r := range marks {
			x.marker.MarkRange(r)
		}

		for _, rm := range matching(o.rules, text) {
			hits[rm.rule.Name]++
			rm.rule.Action.apply(x, i, rm.groups)
		}
	}
	for _, r := range omnibus.Flush() {
		x.marker.MarkRange(r)
	}

	return &Result{
		Excerpts: render(lines, x.marker.Blocks(), o.clean),
		Lines:    len(lines),
		Hits:     hits,
	}
}

// render joins the lines of each block, keyed by the block's 1-based start.
func render(lines []Line, blocks []Block, c cleaner) Excerpts {
	var out Excerpts
	for _, b := range blocks {
		end := min(b.Max, len(lines))
		if b.Min >= end {
			continue
		}
		var sb strings.Builder
		for _, l := range lines[b.Min:end] {
			sb.WriteString(c.renderText(l.Text))
		}
		out = append(out, Excerpt{Line: b.Min + 1, Text: sb.String()})
	}
	return out
}
