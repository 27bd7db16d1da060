package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/newhook/pipereport/internal/jenkins"
	"github.com/newhook/pipereport/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consoleWithError(n, at int) string {
	var sb strings.Builder
	for i := range n {
		if i == at {
			sb.WriteString("ERROR: something broke\n")
			continue
		}
		fmt.Fprintf(&sb, "step %d\n", i)
	}
	return sb.String()
}

func TestHarness_ExtractAll(t *testing.T) {
	ctx := context.Background()
	h := NewTestHarness(t)

	ok := h.AddConsole("job/app/12", "1", consoleWithError(20, 9))
	clean := h.AddConsole("job/app/12", "2", "Started by timer\nFinished: SUCCESS\n")
	missing := report.RunRef{Build: "job/app/12", Run: "3"}
	denied := h.AddConsole("job/app/12", "4", "x\n")
	h.FailConsole(denied, http.StatusForbidden)

	refs := []report.RunRef{ok, clean, missing, denied}
	results, err := h.Extractor.ExtractAll(ctx, refs, report.Policy{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, report.OutcomeExtracted, results[0].Outcome)
	require.Len(t, results[0].Excerpts, 1)
	assert.Equal(t, 8, results[0].Excerpts[0].Line)

	assert.Equal(t, report.OutcomeExtracted, results[1].Outcome)
	assert.Empty(t, results[1].Excerpts)

	assert.Equal(t, report.OutcomeNoConsole, results[2].Outcome)
	assert.NoError(t, results[2].Err)

	require.ErrorIs(t, results[3].Err, jenkins.ErrUnauthorized)

	run, err := h.DB.GetRun(ctx, "job/app/12", "1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 20, run.LineCount)
	hits, err := h.DB.GetRuleHits(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"error": 1}, hits)

	none, err := h.DB.GetRun(ctx, "job/app/12", "3")
	require.NoError(t, err)
	assert.Nil(t, none, "runs without console text are not recorded")
}

func TestHarness_PolicyAndCache(t *testing.T) {
	ctx := context.Background()
	h := NewTestHarness(t)
	ref := h.AddConsole("job/app/12", "", consoleWithError(20, 9))

	res, err := h.Extractor.Extract(ctx, ref, report.Policy{})
	require.NoError(t, err)
	assert.Equal(t, report.OutcomeExtracted, res.Outcome)
	assert.Equal(t, 1, h.Requests(ref))

	res, err = h.Extractor.Extract(ctx, ref, report.Policy{})
	require.NoError(t, err)
	assert.Equal(t, report.OutcomeSkipped, res.Outcome)
	assert.Equal(t, 1, h.Requests(ref))

	// Forced runs re-extract from the cached console text.
	res, err = h.Extractor.Extract(ctx, ref, report.Policy{Force: true})
	require.NoError(t, err)
	assert.Equal(t, report.OutcomeExtracted, res.Outcome)
	assert.Equal(t, 1, h.Requests(ref))

	require.NoError(t, h.Source.Invalidate(ctx, ref))
	_, err = h.Extractor.Extract(ctx, ref, report.Policy{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, h.Requests(ref))
}
