package report

import (
	"context"
	"fmt"

	"github.com/newhook/pipereport/internal/db"
	"github.com/newhook/pipereport/internal/logparser"
)

// DBStore is a RunStore backed by the project database.
type DBStore struct {
	db *db.DB
}

var _ RunStore = (*DBStore)(nil)

// NewDBStore creates a RunStore on database.
func NewDBStore(database *db.DB) *DBStore {
	return &DBStore{db: database}
}

// Excerpts returns the stored excerpts for ref.
func (s *DBStore) Excerpts(ctx context.Context, ref RunRef) (logparser.Excerpts, bool, error) {
	run, err := s.db.GetRun(ctx, ref.Build, ref.Run)
	if err != nil {
		return nil, false, err
	}
	if run == nil || !run.HasExcerpts() {
		return nil, false, nil
	}

	rows, err := s.db.GetExcerpts(ctx, run.ID)
	if err != nil {
		return nil, false, err
	}
	excerpts := make(logparser.Excerpts, len(rows))
	for i, row := range rows {
		excerpts[i] = logparser.Excerpt{Line: row.StartLine, Text: row.Text}
	}
	return excerpts, true, nil
}

// SaveExcerpts replaces the stored excerpts for ref with result.
func (s *DBStore) SaveExcerpts(ctx context.Context, ref RunRef, result *logparser.Result) error {
	run, err := s.db.EnsureRun(ctx, ref.Build, ref.Run)
	if err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}

	rows := make([]db.Excerpt, len(result.Excerpts))
	for i, ex := range result.Excerpts {
		rows[i] = db.Excerpt{StartLine: ex.Line, Text: ex.Text}
	}
	return s.db.SaveExcerpts(ctx, run.ID, rows, result.Lines, result.Hits)
}
