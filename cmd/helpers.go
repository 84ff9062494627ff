package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/config"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/render"
	"github.com/derickschaefer/atmosight/internal/service"
	"github.com/derickschaefer/atmosight/internal/util"
)

// normaliseVars upper-cases variable codes and removes duplicates while
// preserving order.
func normaliseVars(vars []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns def, or the --out file when one was given. The close
// function must always be called.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result to stdout or --out, followed by the footer.
func emit(cmd *cobra.Command, cfg *config.Config, result *model.Result) error {
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := render.Render(w, result, resolveFormat(cfg.Format)); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if !cfg.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, cfg.Verbose)
	}
	return nil
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data interface{}, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTableTo renders a two-column key/value listing using aligned columns.
func printKVTableTo(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

// ─── Request flags ────────────────────────────────────────────────────────────

// requestFlags are shared by every command that runs an analysis.
type requestFlags struct {
	variables []string
	date      string
	doy       int
	startYear int
	endYear   int
	lat       float64
	lon       float64
}

func (f *requestFlags) register(cmd *cobra.Command, multiVariable bool) {
	fl := cmd.Flags()
	if multiVariable {
		fl.StringSliceVarP(&f.variables, "variable", "v", nil,
			"NASA POWER parameter(s), repeatable (default: config variable)")
	} else {
		fl.StringSliceVarP(&f.variables, "variable", "v", nil,
			"NASA POWER parameter, e.g. T2M, PRECTOTCORR, WS2M, RH2M")
	}
	fl.StringVar(&f.date, "date", "", "calendar date whose day of year is analysed (YYYY-MM-DD, default today)")
	fl.IntVar(&f.doy, "doy", 0, "day of year 1-366 (overrides the day derived from --date)")
	fl.IntVar(&f.startYear, "start-year", 0, "first year of the window (default: config start_year)")
	fl.IntVar(&f.endYear, "end-year", 0, "last year of the window (default: current year)")
	fl.Float64Var(&f.lat, "lat", 0, "latitude; with --lon, skips geocoding")
	fl.Float64Var(&f.lon, "lon", 0, "longitude; with --lat, skips geocoding")
}

// vars returns the requested variable codes, or the configured default.
func (f *requestFlags) vars(cfg *config.Config) []string {
	vs := normaliseVars(f.variables)
	if len(vs) == 0 {
		vs = []string{strings.ToUpper(cfg.Variable)}
	}
	return vs
}

// request builds an analysis request for variable from flags, positional
// arguments and config defaults.
func (f *requestFlags) request(cmd *cobra.Command, cfg *config.Config, args []string, variable string) (service.Request, error) {
	req := service.Request{
		Location:  strings.TrimSpace(strings.Join(args, " ")),
		Variable:  variable,
		DayOfYear: f.doy,
		StartYear: f.startYear,
		EndYear:   f.endYear,
	}
	if req.StartYear == 0 {
		req.StartYear = cfg.StartYear
	}

	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return req, fmt.Errorf("--lat and --lon must be given together")
	}
	if latSet {
		if f.lat < -90 || f.lat > 90 || f.lon < -180 || f.lon > 180 {
			return req, fmt.Errorf("coordinates out of range: %g, %g", f.lat, f.lon)
		}
		req.Coords = &model.Coordinates{Lat: f.lat, Lon: f.lon}
	}

	if req.Location == "" && req.Coords == nil {
		req.Location = cfg.Location
	}
	if req.Location == "" && req.Coords == nil {
		return req, fmt.Errorf("no location given (pass a place name, --lat/--lon, or set location in config.json)")
	}

	if f.date != "" {
		d, err := util.ParseDate(f.date)
		if err != nil {
			return req, fmt.Errorf("--date: %w", err)
		}
		req.Date = d
	}
	return req, nil
}
