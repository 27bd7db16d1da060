// Package testutil provides a wired test environment for exercising the
// fetch and extract flow without a real Jenkins server.
//
// The harness serves console logs from an httptest server and stores runs in
// an in-memory database:
//
//	h := testutil.NewTestHarness(t)
//	h.AddConsole("job/app/12", "", consoleText)
//	results, err := h.Extractor.ExtractAll(ctx, refs, report.Policy{})
package testutil
