package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/newhook/pipereport/internal/cachemanager"
	"github.com/newhook/pipereport/internal/jenkins"
	"github.com/newhook/pipereport/internal/project"
	"github.com/newhook/pipereport/internal/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var flagFetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch <build> [run...]",
	Short: "Fetch console logs from Jenkins and store their excerpts",
	Long: `Fetch the console text of a build, or of the given runs of a build, and
store the extracted excerpts in the project database.

Runs that already have excerpts are skipped unless --force is given.
Runs without console text are reported and skipped.

Example:
  pipereport fetch job/app/job/main/412
  pipereport fetch job/app/412 execution/node/17 execution/node/23 --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVarP(&flagFetchForce, "force", "f", false, "recompute excerpts that are already stored")
}

// newExtractor wires the Jenkins client, console cache, and run store of proj.
func newExtractor(proj *project.Project, opts ...report.ExtractorOption) (*report.Extractor, error) {
	cfg := proj.Config.Jenkins
	if cfg.URL == "" {
		return nil, fmt.Errorf("jenkins url is not configured in %s/%s", project.ConfigDir, project.ConfigFile)
	}

	client, err := jenkins.NewClient(cfg.URL,
		jenkins.WithCredentials(cfg.User, cfg.Token()),
		jenkins.WithTimeout(cfg.GetTimeout()),
		jenkins.WithRateLimit(cfg.GetRequestsPerSecond()),
	)
	if err != nil {
		return nil, err
	}

	ttl := proj.Config.Cache.GetTTL()
	cache := cachemanager.NewInMemoryCacheManager[string, string]("console", ttl, cachemanager.DefaultCleanupInterval)
	source := report.NewCachedSource(client, cache, ttl)

	opts = append([]report.ExtractorOption{
		report.WithParserOptions(proj.Config.Extract.Options()...),
		report.WithConcurrency(cfg.GetConcurrency()),
	}, opts...)
	return report.NewExtractor(source, report.NewDBStore(proj.DB), opts...), nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	proj, err := findProject(ctx)
	if err != nil {
		return err
	}
	defer proj.Close()

	refs := report.RunRefs(args[0], args[1:])
	bar := progressbar.NewOptions(len(refs),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Fetching runs"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	extractor, err := newExtractor(proj, report.WithProgress(func(report.RunResult) {
		_ = bar.Add(1)
	}))
	if err != nil {
		return err
	}

	results, err := extractor.ExtractAll(ctx, refs, report.Policy{Force: flagFetchForce})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tOUTCOME\tBLOCKS\tLINES")
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\terror: %v\t-\t-\n", res.Ref, res.Err)
			continue
		}
		lines := "-"
		if res.Outcome == report.OutcomeExtracted {
			lines = fmt.Sprint(res.Lines)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", res.Ref, res.Outcome, len(res.Excerpts), lines)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}
