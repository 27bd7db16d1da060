package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [build]",
	Short: "List stored runs",
	Long:  `List the runs in the project database, optionally only those of one build.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	var build string
	if len(args) > 0 {
		build = refFromArgs(args).Build
	}
	runs, err := proj.DB.ListRuns(ctx, build)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUILD\tRUN\tLINES\tEXCERPTED")
	for _, run := range runs {
		runID := run.RunID
		if runID == "" {
			runID = "-"
		}
		excerpted := "-"
		if run.ExcerptedAt != nil {
			excerpted = run.ExcerptedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", run.BuildID, runID, run.LineCount, excerpted)
	}
	return w.Flush()
}
