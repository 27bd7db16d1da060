package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/newhook/pipereport/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect and change the report database schema",
	Long: `Inspect and change the schema of the project's report database.
Pending migrations are applied whenever the database is opened, so "up" is
only needed to confirm the schema after an upgrade.`,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema migrations and stored data",
	Long:  `Show every known schema migration, whether it is applied, and how many runs, excerpts and rule hits are stored.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the newest applied schema migration",
	Long:  `Revert the newest applied schema migration. It is applied again the next time the database is opened.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrateRollback,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	plan, err := db.MigrationPlan(ctx, proj.DB.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	stats, err := proj.DB.Stats(ctx)
	if err != nil {
		return err
	}

	if err := writeMigrationPlan(os.Stdout, plan); err != nil {
		return err
	}
	fmt.Println()
	writeStoreStats(os.Stdout, stats)
	return nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	if err := db.RunMigrations(ctx, proj.DB.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	plan, err := db.MigrationPlan(ctx, proj.DB.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	if last, ok := lastApplied(plan); ok {
		fmt.Printf("Report schema is at %s_%s\n", last.Version, last.Name)
	}
	return nil
}

func runMigrateRollback(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	plan, err := db.MigrationPlan(ctx, proj.DB.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	last, ok := lastApplied(plan)
	if !ok {
		return fmt.Errorf("report schema has no applied migrations")
	}

	if err := db.RollbackMigration(ctx, proj.DB.DB); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	fmt.Printf("Rolled back %s_%s\n", last.Version, last.Name)
	return nil
}

// lastApplied returns the newest applied migration in plan.
func lastApplied(plan []db.MigrationState) (db.MigrationState, bool) {
	for i := len(plan) - 1; i >= 0; i-- {
		if plan[i].Applied {
			return plan[i], true
		}
	}
	return db.MigrationState{}, false
}

func writeMigrationPlan(w io.Writer, plan []db.MigrationState) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, m := range plan {
		state := "pending"
		if m.Applied {
			state = "applied"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Version, m.Name, state)
	}
	return tw.Flush()
}

func writeStoreStats(w io.Writer, s db.StoreStats) {
	fmt.Fprintf(w, "Runs: %d (%d excerpted)\n", s.Runs, s.Excerpted)
	fmt.Fprintf(w, "Excerpts: %d\n", s.Excerpts)
	fmt.Fprintf(w, "Rule hits: %d\n", s.RuleHits)
}
