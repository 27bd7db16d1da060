package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/newhook/pipereport/internal/cachemanager"
	"github.com/newhook/pipereport/internal/db"
	"github.com/newhook/pipereport/internal/jenkins"
	"github.com/newhook/pipereport/internal/report"
	"github.com/stretchr/testify/require"
)

// TestHarness wires a fake Jenkins server, the console cache, and an
// in-memory run database into a report.Extractor.
type TestHarness struct {
	T         *testing.T
	DB        *db.DB
	Server    *httptest.Server
	Client    *jenkins.Client
	Cache     *cachemanager.InMemoryCacheManager[string, string]
	Source    *report.CachedSource
	Store     *report.DBStore
	Extractor *report.Extractor

	mu       sync.Mutex
	consoles map[string]string
	requests map[string]int
	status   map[string]int
}

// NewTestHarness creates a harness. Everything is torn down with t.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	testDB, err := db.OpenPath(context.Background(), ":memory:")
	require.NoError(t, err, "failed to open in-memory database")

	h := &TestHarness{
		T:        t,
		DB:       testDB,
		consoles: make(map[string]string),
		requests: make(map[string]int),
		status:   make(map[string]int),
	}

	h.Server = httptest.NewServer(http.HandlerFunc(h.serveConsole))

	h.Client, err = jenkins.NewClient(h.Server.URL, jenkins.WithRateLimit(1000), jenkins.WithTimeout(5*time.Second))
	require.NoError(t, err)

	h.Cache = cachemanager.NewInMemoryCacheManager[string, string]("console", time.Minute, time.Minute)
	h.Source = report.NewCachedSource(h.Client, h.Cache, time.Minute)
	h.Store = report.NewDBStore(testDB)
	h.Extractor = report.NewExtractor(h.Source, h.Store, report.WithConcurrency(2))

	t.Cleanup(func() {
		h.Server.Close()
		testDB.Close()
	})

	return h
}

func (h *TestHarness) serveConsole(w http.ResponseWriter, r *http.Request) {
	path, ok := strings.CutSuffix(strings.Trim(r.URL.Path, "/"), "/consoleText")
	if !ok {
		http.NotFound(w, r)
		return
	}

	h.mu.Lock()
	h.requests[path]++
	text, found := h.consoles[path]
	status := h.status[path]
	h.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(text))
}

// AddConsole serves text as the console of build/run.
func (h *TestHarness) AddConsole(build, run, text string) report.RunRef {
	ref := report.RunRef{Build: build, Run: run}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consoles[ref.Key()] = text
	return ref
}

// FailConsole makes requests for ref answer with status.
func (h *TestHarness) FailConsole(ref report.RunRef, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[ref.Key()] = status
}

// Requests returns how many console requests were made for ref.
func (h *TestHarness) Requests(ref report.RunRef) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[ref.Key()]
}
