package cmd

import (
	"fmt"

	"github.com/newhook/pipereport/internal/logparser"
	"github.com/newhook/pipereport/internal/report"
	"github.com/newhook/pipereport/internal/tui"
	"github.com/spf13/cobra"
)

var flagViewFile string

var viewCmd = &cobra.Command{
	Use:   "view (<build> [run] | --file path)",
	Short: "Browse excerpts interactively",
	Long: `Open an interactive viewer on the stored excerpts of a run, or on the
excerpts extracted from a console log file with --file.

Keys: j/k next/previous block, pgup/pgdn scroll, q quit.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if flagViewFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&flagViewFile, "file", "", "console log file to extract and view")
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	if flagViewFile != "" {
		var opts []logparser.Option
		if proj := findProjectOptional(ctx); proj != nil {
			defer proj.Close()
			opts = proj.Config.Extract.Options()
		}
		path := flagViewFile
		return tui.Run(tui.New(path, func() (logparser.Excerpts, error) {
			text, err := readConsoleLog(cmd.InOrStdin(), path)
			if err != nil {
				return nil, err
			}
			return logparser.Extract(text, opts...), nil
		}))
	}

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	ref := refFromArgs(args)
	store := report.NewDBStore(proj.DB)
	return tui.Run(tui.New(ref.Key(), func() (logparser.Excerpts, error) {
		excerpts, ok, err := store.Excerpts(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no excerpts stored for %s, run 'pipereport fetch' first", ref)
		}
		return excerpts, nil
	}))
}
