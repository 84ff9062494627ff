package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/service"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List, show and delete saved analyses",
	Long: `Reports are analyses saved with 'atmosight analyze --save'. Each one keeps
the complete result, so it can be shown again later in any output format
without contacting NASA POWER.

  atmosight analyze Faisalabad --save
  atmosight report list
  atmosight report show <ID>`,
}

// ─── report list ──────────────────────────────────────────────────────────────

var reportListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all saved reports",
	Example: `  atmosight report list`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		reports, err := deps.Store.ListReports()
		if err != nil {
			return fmt.Errorf("listing reports: %w", err)
		}
		if len(reports) == 0 && resolveFormat(deps.Config.Format) == "table" {
			fmt.Fprintln(cmd.OutOrStdout(), "No reports saved.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: atmosight analyze <LOCATION> --save")
			return nil
		}
		return emit(cmd, deps.Config, newResult(model.KindReports, "report list", reports, len(reports), start))
	},
}

// ─── report show ──────────────────────────────────────────────────────────────

var reportShowCmd = &cobra.Command{
	Use:     "show <ID>",
	Short:   "Show a saved report",
	Example: `  atmosight report show 0192f5c4-...
  atmosight report show 0192f5c4-... --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		rep, ok, err := deps.Store.GetReport(args[0])
		if err != nil {
			return fmt.Errorf("reading report: %w", err)
		}
		if !ok {
			return fmt.Errorf("report %q not found", args[0])
		}

		var b service.Bundle
		if err := json.Unmarshal(rep.Payload, &b); err != nil {
			return fmt.Errorf("decoding report %s: %w", rep.ID, err)
		}
		result := newResult(model.KindAnalysis, "report show "+rep.ID, &b, len(b.Analysis.Sample.Obs), start)
		result.Stats.CacheHit = true
		return emit(cmd, deps.Config, result)
	},
}

// ─── report delete ────────────────────────────────────────────────────────────

var reportDeleteCmd = &cobra.Command{
	Use:     "delete <ID>",
	Short:   "Delete a saved report",
	Example: `  atmosight report delete 0192f5c4-...`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		ok, err := deps.Store.DeleteReport(args[0])
		if err != nil {
			return fmt.Errorf("deleting report: %w", err)
		}
		if !ok {
			return fmt.Errorf("report %q not found", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted report %s\n", args[0])
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportDeleteCmd)
}

// ─── ID generation ────────────────────────────────────────────────────────────

// newReportID returns a UUIDv7, so IDs sort by creation time.
func newReportID() string {
	return uuid.Must(uuid.NewV7()).String()
}
