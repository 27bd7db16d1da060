package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/newhook/pipereport/internal/report"
	"github.com/spf13/cobra"
)

var (
	flagShowJSON  bool
	flagShowWidth int
	flagShowHits  bool
)

var showCmd = &cobra.Command{
	Use:   "show <build> [run]",
	Short: "Print the stored excerpts of a run",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&flagShowJSON, "json", false, "print excerpts as JSON keyed by line number")
	showCmd.Flags().IntVarP(&flagShowWidth, "width", "w", 0, "truncate lines to this width (0: no limit)")
	showCmd.Flags().BoolVar(&flagShowHits, "hits", false, "also print how often each rule matched")
}

// refFromArgs builds the ref named by "<build> [run]" arguments.
func refFromArgs(args []string) report.RunRef {
	var runs []string
	if len(args) > 1 {
		runs = args[1:2]
	}
	return report.RunRefs(args[0], runs)[0]
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	ref := refFromArgs(args)
	excerpts, ok, err := report.NewDBStore(proj.DB).Excerpts(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no excerpts stored for %s, run 'pipereport fetch' first", ref)
	}

	if err := writeExcerpts(os.Stdout, excerpts, flagShowJSON, flagShowWidth); err != nil {
		return err
	}

	if flagShowHits && !flagShowJSON {
		run, err := proj.DB.GetRun(ctx, ref.Build, ref.Run)
		if err != nil {
			return err
		}
		hits, err := proj.DB.GetRuleHits(ctx, run.ID)
		if err != nil {
			return err
		}
		rules := make([]string, 0, len(hits))
		for rule := range hits {
			rules = append(rules, rule)
		}
		sort.Strings(rules)

		fmt.Println()
		fmt.Printf("Rule hits (%d lines scanned):\n", run.LineCount)
		for _, rule := range rules {
			fmt.Printf("  %-24s %d\n", rule, hits[rule])
		}
	}
	return nil
}
