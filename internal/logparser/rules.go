package logparser

import (
	"regexp"
	"strings"
)

// Rule pairs a line pattern with the action taken when a line matches.
// Every rule is tested against every line; all matching actions apply.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Action  Action
}

// Action is what a matching rule does to the block marker.
// It is one of ContextMark or ScanSection.
type Action interface {
	apply(x *extraction, index int, match []string)
}

// ContextMark marks the matched line with Radius lines of context on each
// side. A Radius of 0 uses the extraction's configured radius.
type ContextMark struct {
	Radius int
}

func (a ContextMark) apply(x *extraction, index int, _ []string) {
	radius := x.radius
	if a.Radius > 0 {
		radius = a.Radius
	}
	x.marker.Mark(index-radius, index+radius)
}

// SectionKind names a multi-line shape whose end is found by scanning ahead.
type SectionKind int

const (
	// SectionDelimited is a "=====" line followed by an "Error executing
	// action" line; the section runs while lines keep the same indentation.
	SectionDelimited SectionKind = iota
	// SectionShellCommand is a "The following shell command exited with
	// status" report made of blank-line separated parts.
	SectionShellCommand
)

func (k SectionKind) String() string {
	switch k {
	case SectionDelimited:
		return "delimited"
	case SectionShellCommand:
		return "shell-command"
	default:
		return "unknown"
	}
}

// ScanSection marks a section whose end is located with a forward scan.
type ScanSection struct {
	Kind SectionKind
}

func (a ScanSection) apply(x *extraction, index int, match []string) {
	switch a.Kind {
	case SectionDelimited:
		x.scanDelimited(index, match)
	case SectionShellCommand:
		x.scanShellCommand(index)
	}
}

// shellCommandHops is the number of blank-line hops from the header of a
// shell command report to the blank line that opens its error output, one
// per sub-section: command, "Output:", output, "Error:" and error. The error
// body itself is covered by the context radius.
const shellCommandHops = 5

func (x *extraction) scanDelimited(index int, match []string) {
	indent := match[1]
	next := index + 1
	if next >= len(x.texts) || !strings.HasPrefix(x.texts[next], indent+"Error executing action") {
		return
	}
	end := findBoundary(x.lines, index, func(l Line) bool {
		return !strings.HasPrefix(x.texts[l.Index], indent)
	}) - 1
	x.marker.Mark(index-x.radius, end+x.radius)
}

// scanShellCommand hops positionally over blank lines. The "Output:" and
// "Error:" headers are not checked.
func (x *extraction) scanShellCommand(index int) {
	end := index
	for range shellCommandHops {
		end = findBoundary(x.lines, end+1, x.isBlank)
	}
	x.marker.Mark(index-x.radius, end+x.radius)
}

func (x *extraction) isBlank(l Line) bool {
	return strings.TrimSuffix(x.texts[l.Index], "\r") == ""
}

// contextRule builds a rule that marks the default context around a match.
func contextRule(name, pattern string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(pattern), Action: ContextMark{}}
}

var defaultRules = []Rule{
	contextRule("deployment-flag", `The --deployment flag requires a`),
	contextRule("eacces", `EACCES`),
	contextRule("error", `\bERROR\b`),
	contextRule("fatal", `(?i)\bFATAL\b`),
	contextRule("connection-reset", `Errno::ECONNRESET`),
	contextRule("permission-denied", `(?i)Permission denied`),
	contextRule("connection-timeout", `(?i)Connection timed out`),
	contextRule("action-failed", `(?i)Failed to complete (.*) action:`),

	// 	at com.michelin.cio.hudson.plugins.copytoslave.MyFilePath.copyRecursiveTo(MyFilePath.java:147)
	contextRule("java-stack-frame", `^\s*at ([a-z_]\w*\.)+[A-Z_]\w*\.[a-z_]\w*\([^\)]*\)\s*$`),

	//   /var/lib/gems/omnibus/lib/omnibus/thread_pool.rb:61:in `block (2 levels) in initialize'
	contextRule("ruby-stack-frame", "^\\s*(\\S+):(\\d+):in `([^']*)'"),

	contextRule("build-step-failure", `(?i)^\s*Build step '(.+)' (marked build as|changed build result to) failure\s*$`),
	contextRule("verification-failed", `(?i)^\s*Verification of component '(.+)' failed.\s*$`),
	contextRule("freed-prematurely", `freed prematurely`),
	contextRule("chef-client-failed", `(?i)Chef Client failed`),
	contextRule("agent-offline", `(?i)(Slave|Agent) went offline during the build`),
	contextRule("omnibus-warning", `^\s*(\[([^\]]+)\])? (W|E) \|`),

	{
		Name:    "chef-error-section",
		Pattern: regexp.MustCompile(`^(\s*)(={10,})\s*$`),
		Action:  ScanSection{Kind: SectionDelimited},
	},
	{
		Name:    "shell-command-failure",
		Pattern: regexp.MustCompile(`(?i)^\s*The following shell command exited with status \S+:\s*$`),
		Action:  ScanSection{Kind: SectionShellCommand},
	},

	// Timing lines are not failures; they only need to stay readable when
	// they land inside a block.
	{
		Name:    "omnibus-timing",
		Pattern: regexp.MustCompile(`^\s*\[([^\]]+)\] . \| .*:\s+(\d+(\.\d+)?)s$`),
		Action:  ContextMark{Radius: 1},
	},
	{
		Name:    "acceptance-timing",
		Pattern: regexp.MustCompile(`^CHEF-ACCEPTANCE::\[[^\]]+\]\s+\|(.+)\|\s*$`),
		Action:  ContextMark{Radius: 1},
	},
}

// DefaultRules returns a copy of the built-in rule table, in evaluation order.
func DefaultRules() []Rule {
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return rules
}

// ruleMatch is one rule that matched a line, with its submatches.
type ruleMatch struct {
	rule   *Rule
	groups []string
}

// matching returns every rule matching text, in table order.
func matching(rules []Rule, text string) []ruleMatch {
	var out []ruleMatch
	for i := range rules {
		if m := rules[i].Pattern.FindStringSubmatch(text); m != nil {
			out = append(out, ruleMatch{rule: &rules[i], groups: m})
		}
	}
	return out
}
