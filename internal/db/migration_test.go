package db

import (
	"context"
	"database/sql"
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed test_migrations/*.sql
var testMigrationsFS embed.FS

// hasColumn checks if a table has a specific column
func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsForFS(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	require.NoError(t, RunMigrationsForFS(ctx, db, testMigrationsFS))

	ok, err := hasColumn(ctx, db, "widgets", "color")
	require.NoError(t, err)
	assert.True(t, ok)

	versions, err := MigrationStatus(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001", "002"}, versions)

	// Running again is a no-op.
	require.NoError(t, RunMigrationsForFS(ctx, db, testMigrationsFS))

	var name string
	_, err = db.ExecContext(ctx, "INSERT INTO widgets (id) VALUES (1)")
	require.NoError(t, err)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM widgets WHERE id = 1").Scan(&name))
	assert.Equal(t, "a;b", name, "semicolons inside strings must not split statements")
}

func TestRollbackMigrationForFS(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	require.NoError(t, RunMigrationsForFS(ctx, db, testMigrationsFS))
	require.NoError(t, RollbackMigrationForFS(ctx, db, testMigrationsFS))

	ok, err := hasColumn(ctx, db, "widgets", "color")
	require.NoError(t, err)
	assert.False(t, ok)

	versions, err := MigrationStatus(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001"}, versions)
}

func TestRollbackMigrationForFS_NothingApplied(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)
	require.NoError(t, createMigrationsTable(ctx, db))

	err := RollbackMigrationForFS(ctx, db, testMigrationsFS)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no migrations")
}

func TestMigrationStatus_NoTable(t *testing.T) {
	versions, err := MigrationStatus(context.Background(), openRaw(t))
	require.NoError(t, err)
	assert.Nil(t, versions)
}

func TestSplitSQLStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "two statements",
			input:    "CREATE TABLE a (x INT);\nCREATE TABLE b (y INT);",
			expected: []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"},
		},
		{
			name:     "semicolon in string",
			input:    "INSERT INTO a VALUES ('x;y');",
			expected: []string{"INSERT INTO a VALUES ('x;y')"},
		},
		{
			name:     "semicolon in comment",
			input:    "-- drop; later\nSELECT 1;",
			expected: []string{"-- drop; later\nSELECT 1"},
		},
		{
			name:     "no trailing semicolon",
			input:    "SELECT 1",
			expected: []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitSQLStatements(tt.input))
		})
	}
}

func TestSplitSections(t *testing.T) {
	up, down := splitSections("-- +up\nCREATE TABLE a (x INT);\n-- +down\nDROP TABLE a;\n")
	assert.Equal(t, "CREATE TABLE a (x INT);", up)
	assert.Equal(t, "DROP TABLE a;\n", down)
}

func TestMigrationPlanForFS(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	plan, err := MigrationPlanForFS(ctx, db, testMigrationsFS)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.False(t, plan[0].Applied)
	assert.False(t, plan[1].Applied)

	require.NoError(t, RunMigrationsForFS(ctx, db, testMigrationsFS))
	require.NoError(t, RollbackMigrationForFS(ctx, db, testMigrationsFS))

	plan, err = MigrationPlanForFS(ctx, db, testMigrationsFS)
	require.NoError(t, err)
	assert.Equal(t, "001", plan[0].Version)
	assert.True(t, plan[0].Applied)
	assert.Equal(t, "002", plan[1].Version)
	assert.False(t, plan[1].Applied)
}

func TestMigrationPlan_Embedded(t *testing.T) {
	db := setupTestDB(t)

	plan, err := MigrationPlan(context.Background(), db.DB)
	require.NoError(t, err)
	require.NotEmpty(t, plan)
	for _, m := range plan {
		assert.True(t, m.Applied, "migration %s should be applied on open", m.Version)
	}
}
