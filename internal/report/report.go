// Package report decides when a run's console log needs extracting, runs the
// extraction, and stores and formats the resulting excerpts.
package report

import (
	"context"
	"strings"

	"github.com/newhook/pipereport/internal/logparser"
)

// RunRef identifies one build run. Run is empty for builds without runs.
type RunRef struct {
	Build string
	Run   string
}

// Key returns the "build/run" path of the ref, or just the build.
func (r RunRef) Key() string {
	if r.Run == "" {
		return r.Build
	}
	return r.Build + "/" + r.Run
}

func (r RunRef) String() string {
	return r.Key()
}

// RunRefs expands a build and its run ids into refs. No runs yields one ref
// for the build itself.
func RunRefs(build string, runs []string) []RunRef {
	build = strings.Trim(build, "/")
	if len(runs) == 0 {
		return []RunRef{{Build: build}}
	}
	refs := make([]RunRef, 0, len(runs))
	for _, run := range runs {
		refs = append(refs, RunRef{Build: build, Run: strings.Trim(run, "/")})
	}
	return refs
}

// LogSource provides console text for a run. ok is false when the run has
// no console text, which is not an error.
type LogSource interface {
	ConsoleText(ctx context.Context, ref RunRef) (text string, ok bool, err error)
}

// RunStore reads and writes the excerpts recorded for a run. ok is false
// when excerpts were never computed for the run.
type RunStore interface {
	Excerpts(ctx context.Context, ref RunRef) (excerpts logparser.Excerpts, ok bool, err error)
	SaveExcerpts(ctx context.Context, ref RunRef, result *logparser.Result) error
}

// Policy controls whether stored excerpts are recomputed.
type Policy struct {
	Force bool
}

// ShouldExtract reports whether a run needs extracting given whether it
// already has excerpts.
func (p Policy) ShouldExtract(populated bool) bool {
	return p.Force || !populated
}
