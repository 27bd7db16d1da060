package cmd

import (
	"context"
	"fmt"

	"github.com/newhook/pipereport/internal/project"
	prsignal "github.com/newhook/pipereport/internal/signal"
	"github.com/spf13/cobra"
)

var (
	// rootCtx holds the signal-cancellable context for the application
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// flagProject overrides project discovery from the working directory
	flagProject string
)

var rootCmd = &cobra.Command{
	Use:   "pipereport",
	Short: "Extract the failure excerpts from Jenkins console logs",
	Long: `pipereport reduces Jenkins console logs to the few excerpts worth reading:
error lines, stack frames, failed shell commands, and Chef error sections,
each with a little surrounding context.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Create a cancellable context with signal handling
		rootCtx, rootCancel = prsignal.WithSignalCancel(context.Background())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Clean up the signal handler
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// GetContext returns the root context that is cancelled on SIGINT/SIGTERM.
// This should be used by all subcommands instead of context.Background().
func GetContext() context.Context {
	if rootCtx == nil {
		// Fallback if called before PersistentPreRun (shouldn't happen in normal use)
		return context.Background()
	}
	return rootCtx
}

// findProject locates the project from --project or the working directory.
func findProject(ctx context.Context) (*project.Project, error) {
	proj, err := project.Find(ctx, flagProject)
	if err != nil {
		return nil, fmt.Errorf("not in a project directory: %w", err)
	}
	return proj, nil
}

// findProjectOptional is findProject for commands that also work without a
// project. It returns nil when no project is found.
func findProjectOptional(ctx context.Context) *project.Project {
	proj, err := project.Find(ctx, flagProject)
	if err != nil {
		return nil
	}
	return proj
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "project directory (default: auto-detect from cwd)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(viewCmd)
}
