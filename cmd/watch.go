package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/newhook/pipereport/internal/logging"
	"github.com/newhook/pipereport/internal/logparser"
	"github.com/newhook/pipereport/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	flagWatchPattern string
	flagWatchOut     string
	flagWatchJSON    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Extract excerpts from console logs as they are written",
	Long: `Watch dir for console log files and extract each one once it stops
changing. Excerpts are printed, or written next to each other in --out as
<name>.excerpts.txt (or .json with --json).`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagWatchPattern, "pattern", "", "file name glob (default from config, \"*.log\")")
	watchCmd.Flags().StringVar(&flagWatchOut, "out", "", "directory to write excerpt files to (default: stdout)")
	watchCmd.Flags().BoolVar(&flagWatchJSON, "json", false, "write excerpts as JSON")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	var opts []logparser.Option
	pattern := flagWatchPattern
	outDir := flagWatchOut
	debounce := watcher.DefaultDebounce
	if proj := findProjectOptional(ctx); proj != nil {
		defer proj.Close()
		opts = proj.Config.Extract.Options()
		debounce = proj.Config.Watch.GetDebounce()
		if pattern == "" {
			pattern = proj.Config.Watch.GetPattern()
		}
		if outDir == "" && proj.Config.Watch.OutputDir != "" {
			outDir = proj.Config.Watch.OutputDir
			if !filepath.IsAbs(outDir) {
				outDir = filepath.Join(proj.Root, outDir)
			}
		}
	}
	if pattern == "" {
		pattern = "*.log"
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	w, err := watcher.New(args[0], pattern, debounce)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Watching %s for %s (Ctrl-C to stop)\n", args[0], pattern)
	for ev := range w.Events() {
		if err := processWatchedFile(cmd.OutOrStdout(), ev.Path, outDir, flagWatchJSON, opts); err != nil {
			logging.Error("failed to process console log", "path", ev.Path, "error", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return nil
}

// processWatchedFile extracts path and writes its excerpts to stdout, or to
// a file in outDir when outDir is set.
func processWatchedFile(stdout io.Writer, path, outDir string, asJSON bool, opts []logparser.Option) error {
	text, err := readConsoleLog(nil, path)
	if err != nil {
		return err
	}
	result := logparser.Analyze(text, opts...)
	logging.Info("extracted watched log", "path", path, "lines", result.Lines, "blocks", len(result.Excerpts))

	if outDir == "" {
		fmt.Fprintf(stdout, "==> %s <==\n", path)
		return writeExcerpts(stdout, result.Excerpts, asJSON, 0)
	}

	ext := ".excerpts.txt"
	if asJSON {
		ext = ".excerpts.json"
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ext
	out, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return fmt.Errorf("failed to create excerpt file: %w", err)
	}
	defer out.Close()

	if err := writeExcerpts(out, result.Excerpts, asJSON, 0); err != nil {
		return err
	}
	return out.Close()
}
