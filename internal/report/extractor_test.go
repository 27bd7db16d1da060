package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/newhook/pipereport/internal/logparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingLog() string {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = fmt.Sprintf("step %d", i)
	}
	lines[9] = "ERROR: something broke"
	return strings.Join(lines, "\n") + "\n"
}

func TestExtractor_Extract(t *testing.T) {
	ctx := context.Background()
	ref := RunRef{Build: "job/app/12"}

	t.Run("extracts when nothing is stored", func(t *testing.T) {
		source := &MockLogSource{
			ConsoleTextFunc: func(ctx context.Context, r RunRef) (string, bool, error) {
				return failingLog(), true, nil
			},
		}
		var saved *logparser.Result
		store := &MockRunStore{
			SaveExcerptsFunc: func(ctx context.Context, r RunRef, result *logparser.Result) error {
				assert.Equal(t, ref, r)
				saved = result
				return nil
			},
		}

		res, err := NewExtractor(source, store).Extract(ctx, ref, Policy{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeExtracted, res.Outcome)
		assert.Equal(t, 20, res.Lines)
		require.Len(t, res.Excerpts, 1)
		assert.Equal(t, 8, res.Excerpts[0].Line)
		require.NotNil(t, saved)
		assert.Equal(t, 1, saved.Hits["error"])
	})

	t.Run("keeps stored excerpts", func(t *testing.T) {
		stored := logparser.Excerpts{{Line: 3, Text: "old\n"}}
		source := &MockLogSource{}
		store := &MockRunStore{
			ExcerptsFunc: func(ctx context.Context, r RunRef) (logparser.Excerpts, bool, error) {
				return stored, true, nil
			},
		}

		res, err := NewExtractor(source, store).Extract(ctx, ref, Policy{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		assert.Equal(t, stored, res.Excerpts)
		assert.Empty(t, source.Calls())
	})

	t.Run("empty stored excerpts still count as populated", func(t *testing.T) {
		source := &MockLogSource{}
		store := &MockRunStore{
			ExcerptsFunc: func(ctx context.Context, r RunRef) (logparser.Excerpts, bool, error) {
				return nil, true, nil
			},
		}

		res, err := NewExtractor(source, store).Extract(ctx, ref, Policy{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		assert.Empty(t, source.Calls())
	})

	t.Run("force recomputes", func(t *testing.T) {
		source := &MockLogSource{
			ConsoleTextFunc: func(ctx context.Context, r RunRef) (string, bool, error) {
				return "nothing to see\n", true, nil
			},
		}
		saves := 0
		store := &MockRunStore{
			ExcerptsFunc: func(ctx context.Context, r RunRef) (logparser.Excerpts, bool, error) {
				return logparser.Excerpts{{Line: 1, Text: "stale\n"}}, true, nil
			},
			SaveExcerptsFunc: func(ctx context.Context, r RunRef, result *logparser.Result) error {
				saves++
				assert.Empty(t, result.Excerpts)
				return nil
			},
		}

		res, err := NewExtractor(source, store).Extract(ctx, ref, Policy{Force: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeExtracted, res.Outcome)
		assert.Empty(t, res.Excerpts)
		assert.Equal(t, 1, saves)
	})

	t.Run("missing console text is not an error", func(t *testing.T) {
		source := &MockLogSource{
			ConsoleTextFunc: func(ctx context.Context, r RunRef) (string, bool, error) {
				return "", false, nil
			},
		}
		store := &MockRunStore{}

		res, err := NewExtractor(source, store).Extract(ctx, ref, Policy{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoConsole, res.Outcome)
	})

	t.Run("source error is returned", func(t *testing.T) {
		source := &MockLogSource{
			ConsoleTextFunc: func(ctx context.Context, r RunRef) (string, bool, error) {
				return "", false, errors.New("connection refused")
			},
		}

		_, err := NewExtractor(source, &MockRunStore{}).Extract(ctx, ref, Policy{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Contains(t, err.Error(), "job/app/12")
	})

	t.Run("store error is returned", func(t *testing.T) {
		store := &MockRunStore{
			ExcerptsFunc: func(ctx context.Context, r RunRef) (logparser.Excerpts, bool, error) {
				return nil, false, errors.New("disk full")
			},
		}

		_, err := NewExtractor(&MockLogSource{}, store).Extract(ctx, ref, Policy{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("parser options are applied", func(t *testing.T) {
		source := &MockLogSource{
			ConsoleTextFunc: func(ctx context.Context, r RunRef) (string, bool, error) {
				return failingLog(), true, nil
			},
		}
		store := &MockRunStore{
			SaveExcerptsFunc: func(ctx context.Context, r RunRef, result *logparser.Result) error {
				return nil
			},
		}

		ex := NewExtractor(source, store, WithParserOptions(logparser.WithRadius(0)))
		res, err := ex.Extract(ctx, ref, Policy{})
		require.NoError(t, err)
		assert.Empty(t, res.Excerpts)
	})
}

func TestExtractor_ExtractAll(t *testing.T) {
	ctx := context.Background()
	refs := RunRefs("job/app/12", []string{"1", "2", "3", "4", "5"})

	source := &MockLogSource{
		ConsoleTextFunc: func(ctx context.Context, r RunRef) (string, bool, error) {
			switch r.Run {
			case "2":
				return "", false, nil
			case "4":
				return "", false, errors.New("boom")
			default:
				return failingLog(), true, nil
			}
		},
	}
	var mu sync.Mutex
	saved := map[string]bool{}
	store := &MockRunStore{
		SaveExcerptsFunc: func(ctx context.Context, r RunRef, result *logparser.Result) error {
			mu.Lock()
			defer mu.Unlock()
			saved[r.Key()] = true
			return nil
		},
	}

	var done atomic.Int32
	ex := NewExtractor(source, store, WithConcurrency(2), WithProgress(func(RunResult) {
		done.Add(1)
	}))
	results, err := ex.ExtractAll(ctx, refs, Policy{})
	require.NoError(t, err)
	require.Len(t, results, len(refs))
	assert.Equal(t, int32(len(refs)), done.Load())

	for i, res := range results {
		assert.Equal(t, refs[i], res.Ref)
	}
	assert.Equal(t, OutcomeExtracted, results[0].Outcome)
	assert.Equal(t, OutcomeNoConsole, results[1].Outcome)
	assert.Equal(t, OutcomeExtracted, results[2].Outcome)
	require.Error(t, results[3].Err)
	assert.Contains(t, results[3].Err.Error(), "boom")
	assert.Equal(t, OutcomeExtracted, results[4].Outcome)
	assert.Len(t, saved, 3)
}

func TestExtractor_ExtractAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &MockLogSource{}
	results, err := NewExtractor(source, &MockRunStore{}).ExtractAll(ctx, RunRefs("b", []string{"1", "2"}), Policy{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 2)
	assert.Empty(t, source.Calls())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "no console", OutcomeNoConsole.String())
	assert.Equal(t, "extracted", OutcomeExtracted.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
