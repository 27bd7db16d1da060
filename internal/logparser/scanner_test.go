package logparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func isBlankLine(l Line) bool {
	return strings.TrimSpace(l.Text) == ""
}

func TestFindBoundary(t *testing.T) {
	lines := SplitLines("a\nb\n\nc\nd\n")

	tests := []struct {
		name     string
		start    int
		expected int
	}{
		{name: "finds next blank", start: 0, expected: 2},
		{name: "start on match returns start", start: 2, expected: 2},
		{name: "no match returns last index", start: 3, expected: 4},
		{name: "start past end is clamped", start: 9, expected: 4},
		{name: "negative start is clamped", start: -4, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, findBoundary(lines, tt.start, isBlankLine))
		})
	}
}

func TestFindBoundary_Empty(t *testing.T) {
	assert.Equal(t, -1, findBoundary(nil, 0, isBlankLine))
}

func TestClampIndex(t *testing.T) {
	assert.Equal(t, 0, clampIndex(-1, 5))
	assert.Equal(t, 3, clampIndex(3, 5))
	assert.Equal(t, 4, clampIndex(5, 5))
	assert.Equal(t, 4, clampIndex(100, 5))
}
