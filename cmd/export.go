package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/export"
	"github.com/derickschaefer/atmosight/internal/service"
)

var (
	exportFlags requestFlags
	exportCSV   bool
)

var exportCmd = &cobra.Command{
	Use:   "export [LOCATION]",
	Short: "Write an analysis as a ZIP bundle or CSV file",
	Long: `Run an analysis and write its artefacts to a file.

The ZIP bundle holds:
  historical_data.csv   the selected day for every year (missing years empty)
  trend.png             value by year with mean and fitted trend
  distribution.png      normal curve with mean and extreme threshold
  insight.txt           the plain-language summary
  summary.json          the complete analysis

Charts that cannot be drawn (no data, or every year equal) are left out.
With --csv only historical_data.csv is written.`,
	Example: `  atmosight export Faisalabad --out faisalabad.zip
  atmosight export Lahore -v PRECTOTCORR --date 2024-07-19
  atmosight export Karachi --csv --out karachi.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		vars := exportFlags.vars(deps.Config)
		if len(vars) > 1 {
			return fmt.Errorf("export takes one variable, got %d", len(vars))
		}
		b, err := analyzeRemote(cmd, deps, &exportFlags, args, vars[0])
		if err != nil {
			return err
		}

		path := globalFlags.Out
		if path == "" {
			path = exportFileName(&b, exportCSV)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}

		skipped, err := writeExport(f, &b, exportCSV)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", path)
			for _, s := range skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "  skipped %s\n", s)
			}
		}
		return nil
	},
}

func writeExport(w io.Writer, b *service.Bundle, csvOnly bool) ([]string, error) {
	if csvOnly {
		return nil, export.WriteCSV(w, b.Variable, b.Analysis.Sample.Obs)
	}
	return export.WriteBundle(w, b)
}

func exportFileName(b *service.Bundle, csvOnly bool) string {
	ext := "zip"
	if csvOnly {
		ext = "csv"
	}
	return fmt.Sprintf("atmosight_%s_%s.%s", strings.ToLower(b.Variable.Code), b.Date, ext)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportFlags.register(exportCmd, false)
	exportCmd.Flags().BoolVar(&exportCSV, "csv", false, "write only the historical CSV instead of a ZIP bundle")
}
