package cmd

import (
	"fmt"

	"github.com/newhook/pipereport/internal/project"
	"github.com/spf13/cobra"
)

var flagInitJenkinsURL string

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a pipereport project",
	Long: `Create a pipereport project in dir (default: current directory).

This writes .pipereport/config.toml with every option documented and
creates the run database.

Example:
  pipereport init --jenkins-url https://jenkins.example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&flagInitJenkinsURL, "jenkins-url", "", "base URL of the Jenkins server")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	proj, err := project.Create(ctx, dir, flagInitJenkinsURL)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	defer proj.Close()

	fmt.Printf("Project '%s' created successfully!\n", proj.Config.Project.Name)
	fmt.Printf("  Directory: %s\n", proj.Root)
	if proj.Config.Jenkins.URL != "" {
		fmt.Printf("  Jenkins:   %s\n", proj.Config.Jenkins.URL)
	} else {
		fmt.Printf("  Jenkins:   (not set, edit %s/%s)\n", project.ConfigDir, project.ConfigFile)
	}
	return nil
}
