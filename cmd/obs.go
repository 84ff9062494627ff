package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/dataset"
	"github.com/derickschaefer/atmosight/internal/geocode"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/power"
	"github.com/derickschaefer/atmosight/internal/util"
)

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "Retrieve daily observations",
	Long: `Fetch the normalized daily series behind an analysis, for one or more
NASA POWER parameters at one place.

Variables:  T2M (temperature), PRECTOTCORR (rainfall), WS2M (wind speed),
            RH2M (relative humidity), ALLSKY_SFC_SW_DWN (solar radiation)`,
}

var (
	obsFlags requestFlags
	obsDay   bool
)

// ─── obs get ──────────────────────────────────────────────────────────────────

var obsGetCmd = &cobra.Command{
	Use:   "get [LOCATION]",
	Short: "Fetch daily observations for one or more variables",
	Example: `  atmosight obs get Faisalabad
  atmosight obs get Lahore -v T2M -v RH2M --start-year 2010
  atmosight obs get Karachi --doy 200 --format csv --out karachi.csv
  atmosight obs get Multan --day --date 2024-01-19 --format jsonl | atmosight chart bar`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		runner, err := deps.Runner()
		if err != nil {
			return err
		}

		start := time.Now()
		vars := obsFlags.vars(deps.Config)
		variables := make([]model.Variable, 0, len(vars))
		for _, name := range vars {
			v, err := power.LookupVariable(name)
			if err != nil {
				return err
			}
			variables = append(variables, v)
		}

		req, err := obsFlags.request(cmd, deps.Config, args, variables[0].Code)
		if err != nil {
			return err
		}
		req, err = runner.Prepare(req)
		if err != nil {
			return err
		}

		coords := model.Coordinates{}
		var warnings []string
		if req.Coords != nil {
			coords = *req.Coords
		} else {
			loc := geocode.Resolve(cmd.Context(), runner.Geocoder, req.Location, deps.Logger)
			if loc.Fallback {
				warnings = append(warnings, fmt.Sprintf("location %q could not be resolved (%s); used fallback coordinates", req.Location, loc.Reason))
			}
			coords = loc.Place.Coordinates()
		}

		queries := make([]dataset.Query, len(variables))
		for i, v := range variables {
			queries[i] = dataset.Query{Variable: v.Code, Coords: coords, StartYear: req.StartYear, EndYear: req.EndYear}
		}
		results, err := dataset.FetchMany(cmd.Context(), runner.Fetcher, queries, deps.Config.Concurrency)
		warnings = append(warnings, fetchWarnings(err)...)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return err
		}

		var (
			series []model.Series
			items  int
			cached = true
		)
		for i, res := range results {
			if res.Raw == nil {
				continue
			}
			s, dropped := analyze.Normalize(variables[i].Code, res.Raw)
			if dropped > 0 {
				warnings = append(warnings, fmt.Sprintf("%s: dropped %d unparseable or duplicate records", s.Variable, dropped))
			}
			if obsDay || cmd.Flags().Changed("doy") {
				s.Obs = analyze.SelectDay(s, req.DayOfYear).Obs
			}
			items += len(s.Obs)
			cached = cached && res.Cached
			series = append(series, s)
		}
		if len(series) == 0 {
			if err != nil {
				return err
			}
			return fmt.Errorf("no series returned")
		}

		result := newResult(model.KindSeriesData, "obs get "+strings.Join(args, " "), series, items, start)
		result.Warnings = warnings
		result.Stats.CacheHit = cached
		return emit(cmd, deps.Config, result)
	},
}

// fetchWarnings flattens a FetchMany error into one warning per variable.
func fetchWarnings(err error) []string {
	var me *util.MultiError
	if !errors.As(err, &me) {
		if err != nil {
			return []string{err.Error()}
		}
		return nil
	}
	var out []string
	for _, e := range me.Unwrap() {
		out = append(out, e.Error())
	}
	return out
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(obsCmd)
	obsCmd.AddCommand(obsGetCmd)

	obsFlags.register(obsGetCmd, true)
	obsGetCmd.Flags().BoolVar(&obsDay, "day", false, "keep only the selected day of year (implied by --doy)")
}
