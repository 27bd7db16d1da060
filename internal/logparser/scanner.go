package logparser

// clampIndex saturates i into [0, n-1].
func clampIndex(i, n int) int {
	if i >= n {
		return n - 1
	}
	return max(i, 0)
}

// findBoundary walks forward from start and returns the first index whose
// line satisfies stop. If the log ends first, the last index is returned.
// A start past the end is clamped to the last index.
func findBoundary(lines []Line, start int, stop func(Line) bool) int {
	if len(lines) == 0 {
		return -1
	}
	i := clampIndex(start, len(lines))
	for {
		if stop(lines[i]) {
			return i
		}
		if i+1 >= len(lines) {
			return i
		}
		i++
	}
}
