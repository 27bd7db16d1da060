package logparser

import "regexp"

var (
	// [software] I | Resolving dependencies
	omnibusLabeledPattern = regexp.MustCompile(`^\s*\[([^\]]+)\] [A-Z] \| `)

	//                I | 2016-06-07T20:28:20+00:00 |
	omnibusAnonymousPattern = regexp.MustCompile(`^\s* [A-Z] \| (\d+-\d+-\d+T\d+:\d+:\d+[+-]\d+:\d+) \|`)
)

// OmnibusState tracks the currently open run of omnibus progress lines.
// The zero value has no open step.
type OmnibusState struct {
	step     string
	lastLine int
	open     bool
}

// Open reports whether a step is currently open.
func (s OmnibusState) Open() bool {
	return s.open
}

// StepLabel returns the label of the open step, or "" if none.
func (s OmnibusState) StepLabel() string {
	return s.step
}

// Step folds one line into the state. It returns the next state and the
// ranges to mark: the first line of every step and the tail of the step it
// closes. Lines inside a run are never marked.
func (s OmnibusState) Step(index int, text string) (OmnibusState, []Range) {
	if m := omnibusLabeledPattern.FindStringSubmatch(text); m != nil {
		label := m[1]
		if s.open && label == s.step {
			s.lastLine = index
			return s, nil
		}

		marks := []Range{{Start: index, End: index + 1}}
		if s.open {
			marks = append(marks, Range{Start: s.lastLine - 1, End: s.lastLine})
		}
		return OmnibusState{step: label, lastLine: index, open: true}, marks
	}

	if s.open && omnibusAnonymousPattern.MatchString(text) {
		s.lastLine = index
	}
	return s, nil
}

// Flush returns the closing range for a step still open at end of input.
func (s OmnibusState) Flush() []Range {
	if !s.open {
		return nil
	}
	return []Range{{Start: s.lastLine - 1, End: s.lastLine + 1}}
}
