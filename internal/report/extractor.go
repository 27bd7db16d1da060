package report

import (
	"context"
	"fmt"
	"time"

	"github.com/newhook/pipereport/internal/logging"
	"github.com/newhook/pipereport/internal/logparser"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of runs ExtractAll processes at once.
const DefaultConcurrency = 4

// Outcome describes what Extract did for a run.
type Outcome int

const (
	// OutcomeSkipped means stored excerpts were kept.
	OutcomeSkipped Outcome = iota
	// OutcomeNoConsole means the run had no console text.
	OutcomeNoConsole
	// OutcomeExtracted means excerpts were computed and stored.
	OutcomeExtracted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoConsole:
		return "no console"
	case OutcomeExtracted:
		return "extracted"
	default:
		return "unknown"
	}
}

// RunResult is the result of extracting one run.
type RunResult struct {
	Ref      RunRef
	Outcome  Outcome
	Excerpts logparser.Excerpts
	Lines    int
	Err      error
}

// Extractor connects a LogSource and a RunStore through the log parser.
type Extractor struct {
	source      LogSource
	store       RunStore
	options     []logparser.Option
	concurrency int
	progress    func(RunResult)
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithParserOptions sets the options passed to the log parser.
func WithParserOptions(opts ...logparser.Option) ExtractorOption {
	return func(e *Extractor) {
		e.options = opts
	}
}

// WithConcurrency sets how many runs ExtractAll processes at once.
func WithConcurrency(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProgress sets a function called as each run of ExtractAll finishes.
// It may be called from several goroutines at once.
func WithProgress(fn func(RunResult)) ExtractorOption {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(source LogSource, store RunStore, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		source:      source,
		store:       store,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes and stores the excerpts for ref unless policy says the
// stored excerpts should be kept.
func (e *Extractor) Extract(ctx context.Context, ref RunRef, policy Policy) (RunResult, error) {
	result := RunResult{Ref: ref}

	existing, populated, err := e.store.Excerpts(ctx, ref)
	if err != nil {
		return result, fmt.Errorf("failed to read excerpts for %s: %w", ref, err)
	}
	if !policy.ShouldExtract(populated) {
		logging.Debug("keeping stored excerpts", "run", ref.Key(), "blocks", len(existing))
		result.Outcome = OutcomeSkipped
		result.Excerpts = existing
		return result, nil
	}

	start := time.Now()
	text, ok, err := e.source.ConsoleText(ctx, ref)
	if err != nil {
		return result, fmt.Errorf("failed to get console text for %s: %w", ref, err)
	}
	if !ok {
		logging.Info("no console text", "run", ref.Key())
		result.Outcome = OutcomeNoConsole
		return result, nil
	}

	analysis := logparser.Analyze(text, e.options...)
	if err := e.store.SaveExcerpts(ctx, ref, analysis); err != nil {
		return result, fmt.Errorf("failed to save excerpts for %s: %w", ref, err)
	}

	logging.Info("extracted excerpts",
		"run", ref.Key(),
		"lines", analysis.Lines,
		"blocks", len(analysis.Excerpts),
		"hits", analysis.Hits,
		"duration", time.Since(start))

	result.Outcome = OutcomeExtracted
	result.Excerpts = analysis.Excerpts
	result.Lines = analysis.Lines
	return result, nil
}

// ExtractAll runs Extract for every ref with bounded concurrency. A failing
// run is reported in its RunResult and does not stop the others. The
// returned error is non-nil only if ctx was cancelled.
func (e *Extractor) ExtractAll(ctx context.Context, refs []RunRef, policy Policy) ([]RunResult, error) {
	results := make([]RunResult, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = RunResult{Ref: ref, Err: err}
				return err
			}
			res, err := e.Extract(gctx, ref, policy)
			if err != nil {
				logging.Error("extraction failed", "run", ref.Key(), "error", err)
				res.Err = err
			}
			results[i] = res
			if e.progress != nil {
				e.progress(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
