package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/app"
	"github.com/derickschaefer/atmosight/internal/chart"
	"github.com/derickschaefer/atmosight/internal/geocode"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/pipeline"
	"github.com/derickschaefer/atmosight/internal/power"
	"github.com/derickschaefer/atmosight/internal/render"
	"github.com/derickschaefer/atmosight/internal/service"
	"github.com/derickschaefer/atmosight/internal/store"
)

var (
	analyzeFlags requestFlags
	analyzeStdin bool
	analyzeSave  bool
	analyzeChart bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [LOCATION]",
	Short: "Describe how one day of the year behaves at a place",
	Long: `Fetch daily NASA POWER data for a place, pick the same calendar day from
every year in the window and report its mean, standard deviation, extremes,
extreme-event frequency (values above mean + 2σ), linear trend and a
volatility label.

The day of year comes from --date (default today) or --doy. A place that
cannot be geocoded falls back to fixed coordinates and is flagged in the output.

With --stdin the series is read as JSONL instead of being fetched, so output
from 'atmosight obs get --format jsonl' can be analysed offline.`,
	Example: `  atmosight analyze Faisalabad
  atmosight analyze Lahore -v PRECTOTCORR --date 2024-07-19
  atmosight analyze --lat 31.42 --lon 73.08 --doy 200 --start-year 2001
  atmosight analyze Karachi --format json --save
  atmosight obs get Multan --format jsonl | atmosight analyze Multan --stdin --date 2024-01-19`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		vars := analyzeFlags.vars(deps.Config)
		if len(vars) > 1 {
			return fmt.Errorf("analyze takes one variable, got %d (use 'obs get' for several)", len(vars))
		}

		start := time.Now()
		var b service.Bundle
		if analyzeStdin {
			b, err = analyzeFromReader(cmd, deps, args, os.Stdin)
		} else {
			b, err = analyzeRemote(cmd, deps, &analyzeFlags, args, vars[0])
		}
		if err != nil {
			return err
		}

		result := newResult(model.KindAnalysis, "analyze "+strings.Join(args, " "), &b, len(b.Analysis.Sample.Obs), start)
		result.Stats.CacheHit = b.Cached
		if b.Location.Fallback {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("location %q could not be resolved (%s); used fallback coordinates", b.Location.Place.Query, b.Location.Reason))
		}
		if err := emit(cmd, deps.Config, result); err != nil {
			return err
		}

		if analyzeChart && resolveFormat(deps.Config.Format) == render.FormatTable {
			if err := printAnalysisCharts(cmd.OutOrStdout(), &b); err != nil {
				return err
			}
		}
		if analyzeSave {
			id, err := saveReport(deps, &b)
			if err != nil {
				return err
			}
			if !deps.Config.Quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved report %s\n", id)
			}
		}
		return nil
	},
}

// analyzeRemote geocodes, fetches and analyses one variable.
func analyzeRemote(cmd *cobra.Command, deps *app.Deps, flags *requestFlags, args []string, variable string) (service.Bundle, error) {
	req, err := flags.request(cmd, deps.Config, args, variable)
	if err != nil {
		return service.Bundle{}, err
	}
	runner, err := deps.Runner()
	if err != nil {
		return service.Bundle{}, err
	}
	return runner.Run(cmd.Context(), req)
}

// analyzeFromReader analyses a JSONL series instead of fetching one. The
// location is only a label; nothing is geocoded.
func analyzeFromReader(cmd *cobra.Command, deps *app.Deps, args []string, r io.Reader) (service.Bundle, error) {
	want := ""
	if len(analyzeFlags.variables) > 0 {
		want = strings.ToUpper(analyzeFlags.variables[0])
	}
	series, err := pipeline.ReadObservations(r, want)
	if err != nil {
		return service.Bundle{}, err
	}

	if series.Variable == "" {
		series.Variable = "SERIES"
	}
	v, err := power.LookupVariable(series.Variable)
	if err != nil {
		v = model.Variable{Code: series.Variable, Label: series.Variable}
	}

	label := strings.TrimSpace(strings.Join(args, " "))
	if label == "" {
		label = "stdin"
	}
	req, err := analyzeFlags.request(cmd, deps.Config, []string{label}, v.Code)
	if err != nil {
		return service.Bundle{}, err
	}

	runner := &service.Runner{Clock: deps.Clock, Logger: deps.Logger}
	req, err = runner.Prepare(req)
	if err != nil {
		return service.Bundle{}, err
	}

	obs, dropped := analyze.NormalizeObservations(series.Obs)
	place := model.Place{Query: label, Name: label}
	if req.Coords != nil {
		place.Lat, place.Lon = req.Coords.Lat, req.Coords.Lon
	}
	return runner.Assemble(service.SeriesResult{
		Request:  req,
		Location: geocode.Resolution{Place: place},
		Variable: v,
		Series:   model.Series{Variable: v.Code, Obs: obs},
		Dropped:  dropped,
	}), nil
}

// printAnalysisCharts draws the per-year bars and, when defined, the bell curve.
func printAnalysisCharts(w io.Writer, b *service.Bundle) error {
	st := b.Analysis.Stats
	if st == nil {
		return nil
	}
	fmt.Fprintln(w)
	threshold := st.Threshold
	if err := chart.Bar(w, b.Variable.Title(), b.Analysis.Sample.Obs, chart.BarOptions{Mark: &threshold}); err != nil {
		return err
	}
	fmt.Fprintln(w)
	err := chart.Distribution(w, b.Variable.Title(), st.Mean, st.StdDev, chart.DistOptions{
		Values: b.Analysis.Sample.Present(),
	})
	if errors.Is(err, chart.ErrDegenerate) {
		fmt.Fprintln(w, "(distribution not drawn: every year has the same value)")
		return nil
	}
	return err
}

func saveReport(deps *app.Deps, b *service.Bundle) (string, error) {
	if err := deps.RequireStore(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	loc := b.Location.Place.Name
	if loc == "" {
		loc = b.Location.Place.Query
	}
	rep := store.Report{
		ID:        newReportID(),
		Location:  loc,
		Variable:  b.Variable.Code,
		Date:      b.Date,
		CreatedAt: deps.Clock.Now().UTC(),
		Payload:   payload,
	}
	if err := deps.Store.PutReport(rep); err != nil {
		return "", fmt.Errorf("saving report: %w", err)
	}
	return rep.ID, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeFlags.register(analyzeCmd, false)
	f := analyzeCmd.Flags()
	f.BoolVar(&analyzeStdin, "stdin", false, "read the series as JSONL from stdin instead of fetching it")
	f.BoolVar(&analyzeSave, "save", false, "save the result as a report in the local store")
	f.BoolVar(&analyzeChart, "chart", false, "draw the yearly bars and bell curve after the table")
}
