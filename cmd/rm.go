package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <build> [run]",
	Short: "Delete a stored run and its excerpts",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRm,
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	ref := refFromArgs(args)
	deleted, err := proj.DB.DeleteRun(ctx, ref.Build, ref.Run)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("run %s not found", ref)
	}
	fmt.Printf("Deleted %s\n", ref)
	return nil
}
