package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/newhook/pipereport/internal/logging"
	"github.com/newhook/pipereport/internal/logparser"
	"github.com/newhook/pipereport/internal/report"
	"github.com/spf13/cobra"
)

var (
	flagExtractContext         int
	flagExtractJSON            bool
	flagExtractStripANSI       bool
	flagExtractStripTimestamps bool
	flagExtractWidth           int
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract excerpts from a console log file",
	Long: `Extract the relevant excerpts from a console log file, or stdin when the
file is "-" or omitted. Nothing is stored.

Inside a project the [extract] config supplies defaults; flags override it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().IntVarP(&flagExtractContext, "context", "C", logparser.DefaultRadius, "lines of context around each failure line")
	extractCmd.Flags().BoolVar(&flagExtractJSON, "json", false, "print excerpts as JSON keyed by line number")
	extractCmd.Flags().BoolVar(&flagExtractStripANSI, "strip-ansi", false, "strip ANSI escape codes")
	extractCmd.Flags().BoolVar(&flagExtractStripTimestamps, "strip-timestamps", false, "strip Timestamper prefixes")
	extractCmd.Flags().IntVarP(&flagExtractWidth, "width", "w", 0, "truncate lines to this width (0: no limit)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	var opts []logparser.Option
	if proj := findProjectOptional(ctx); proj != nil {
		defer proj.Close()
		opts = proj.Config.Extract.Options()
	}
	opts = append(opts, extractFlagOptions(cmd)...)

	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	text, err := readConsoleLog(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	result := logparser.Analyze(text, opts...)
	logging.Info("extracted excerpts from file", "path", path, "lines", result.Lines, "blocks", len(result.Excerpts))

	return writeExcerpts(cmd.OutOrStdout(), result.Excerpts, flagExtractJSON, flagExtractWidth)
}

// extractFlagOptions returns the options for the extraction flags that were
// set explicitly on cmd.
func extractFlagOptions(cmd *cobra.Command) []logparser.Option {
	var opts []logparser.Option
	flags := cmd.Flags()
	if flags.Changed("context") {
		opts = append(opts, logparser.WithRadius(flagExtractContext))
	}
	if flags.Changed("strip-ansi") {
		opts = append(opts, logparser.WithStripANSI(flagExtractStripANSI))
	}
	if flags.Changed("strip-timestamps") {
		opts = append(opts, logparser.WithStripTimestamps(flagExtractStripTimestamps))
	}
	return opts
}

// readConsoleLog reads path, or stdin when path is "-".
func readConsoleLog(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func writeExcerpts(w io.Writer, excerpts logparser.Excerpts, asJSON bool, width int) error {
	if asJSON {
		return report.FormatJSON(w, excerpts)
	}
	return report.FormatText(w, excerpts, width)
}
