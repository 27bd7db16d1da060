package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newhook/pipereport/internal/signal"
)

// Run is the stored record for one build run.
type Run struct {
	ID          string
	BuildID     string
	RunID       string
	LineCount   int
	ExcerptedAt *time.Time
	CreatedAt   time.Time
}

// HasExcerpts reports whether excerpts were ever computed for the run.
// A run whose extraction found nothing still counts as excerpted.
func (r *Run) HasExcerpts() bool {
	return r.ExcerptedAt != nil
}

// Excerpt is a stored excerpt row.
type Excerpt struct {
	StartLine int
	Text      string
}

const runColumns = `id, build_id, run_id, line_count, excerpted_at, created_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var excerptedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.BuildID, &r.RunID, &r.LineCount, &excerptedAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	if excerptedAt.Valid {
		t := excerptedAt.Time
		r.ExcerptedAt = &t
	}
	return &r, nil
}

// EnsureRun returns the run record for buildID/runID, creating it if needed.
func (db *DB) EnsureRun(ctx context.Context, buildID, runID string) (*Run, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (id, build_id, run_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (build_id, run_id) DO NOTHING
	`, uuid.NewString(), buildID, runID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	run, err := db.GetRun(ctx, buildID, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s %s missing after insert", buildID, runID)
	}
	return run, nil
}

// GetRun returns the run record, or nil if it does not exist.
func (db *DB) GetRun(ctx context.Context, buildID, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE build_id = ? AND run_id = ?`, buildID, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first. If buildID is non-empty only
// runs of that build are returned.
func (db *DB) ListRuns(ctx context.Context, buildID string) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if buildID != "" {
		query += ` WHERE build_id = ?`
		args = append(args, buildID)
	}
	query += ` ORDER BY created_at DESC, build_id, run_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its excerpts. It returns false if no such run exists.
func (db *DB) DeleteRun(ctx context.Context, buildID, runID string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE build_id = ? AND run_id = ?`, buildID, runID)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveExcerpts replaces the excerpts and rule hit counts of a run and marks
// it excerpted.
func (db *DB) SaveExcerpts(ctx context.Context, runUUID string, excerpts []Excerpt, lineCount int, hits map[string]int) error {
	return signal.Critical(func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `UPDATE runs SET line_count = ?, excerpted_at = ? WHERE id = ?`,
			lineCount, time.Now().UTC(), runUUID)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run %s not found", runUUID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM excerpts WHERE run_uuid = ?`, runUUID); err != nil {
			return fmt.Errorf("failed to clear excerpts: %w", err)
		}
		for _, ex := range excerpts {
			if _, err := tx.ExecContext(ctx, `INSERT INTO excerpts (run_uuid, start_line, text) VALUES (?, ?, ?)`,
				runUUID, ex.StartLine, ex.Text); err != nil {
				return fmt.Errorf("failed to insert excerpt at line %d: %w", ex.StartLine, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_hits WHERE run_uuid = ?`, runUUID); err != nil {
			return fmt.Errorf("failed to clear rule hits: %w", err)
		}
		for rule, n := range hits {
			if _, err := tx.ExecContext(ctx, `INSERT INTO rule_hits (run_uuid, rule, hits) VALUES (?, ?, ?)`,
				runUUID, rule, n); err != nil {
				return fmt.Errorf("failed to insert rule hits for %s: %w", rule, err)
			}
		}

		return tx.Commit()
	})
}

// GetExcerpts returns a run's excerpts ordered by starting line.
func (db *DB) GetExcerpts(ctx context.Context, runUUID string) ([]Excerpt, error) {
	rows, err := db.QueryContext(ctx, `SELECT start_line, text FROM excerpts WHERE run_uuid = ? ORDER BY start_line`, runUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get excerpts: %w", err)
	}
	defer rows.Close()

	var excerpts []Excerpt
	for rows.Next() {
		var ex Excerpt
		if err := rows.Scan(&ex.StartLine, &ex.Text); err != nil {
			return nil, fmt.Errorf("failed to scan excerpt: %w", err)
		}
		excerpts = append(excerpts, ex)
	}
	return excerpts, rows.Err()
}

// GetRuleHits returns how often each rule fired in a run's last extraction.
func (db *DB) GetRuleHits(ctx context.Context, runUUID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT rule, hits FROM rule_hits WHERE run_uuid = ?`, runUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule hits: %w", err)
	}
	defer rows.Close()

	hits := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rule hits: %w", err)
		}
		hits[rule] = n
	}
	return hits, rows.Err()
}

// StoreStats summarizes the contents of the run store.
type StoreStats struct {
	Runs      int
	Excerpted int
	Excerpts  int
	RuleHits  int
}

// Stats counts stored runs, excerpted runs, excerpts and recorded rule hits.
func (db *DB) Stats(ctx context.Context) (StoreStats, error) {
	var s StoreStats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM runs),
			(SELECT COUNT(*) FROM runs WHERE excerpted_at IS NOT NULL),
			(SELECT COUNT(*) FROM excerpts),
			(SELECT COALESCE(SUM(hits), 0) FROM rule_hits)
	`).Scan(&s.Runs, &s.Excerpted, &s.Excerpts, &s.RuleHits)
	if err != nil {
		return StoreStats{}, fmt.Errorf("failed to get store stats: %w", err)
	}
	return s, nil
}
