package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/chart"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/pipeline"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a series as a terminal chart (reads JSONL from stdin)",
	Long: `Chart commands read JSONL observations from stdin and render to the terminal.
Input holding several variables needs --variable to pick one.

Pipeline examples:
  atmosight obs get Faisalabad --day --date 2024-01-19 --format jsonl | atmosight chart bar
  atmosight analyze Lahore --format jsonl | atmosight chart plot --trend
  atmosight analyze Karachi --format jsonl | atmosight chart dist`,
}

var (
	chartVariable   string
	chartWidth      int
	chartPlotHeight int
	chartDistHeight int
	chartTitle      string
	chartMark       bool
	chartTrend      bool
)

// readChartInput reads the stdin series and picks the chart title.
func readChartInput() (model.Series, string, error) {
	s, err := pipeline.ReadObservations(os.Stdin, chartVariable)
	if err != nil {
		return s, "", err
	}
	if len(s.Obs) == 0 {
		return s, "", fmt.Errorf("no observations on stdin")
	}
	title := chartTitle
	if title == "" {
		title = s.Variable
	}
	if title == "" {
		title = "series"
	}
	return s, title, nil
}

// ─── chart bar ───────────────────────────────────────────────────────────────

var chartBarCmd = &cobra.Command{
	Use:   "bar",
	Short: "Horizontal bar chart, one bar per observation",
	Long: `Renders one labelled bar per observation. Best suited to a day-of-year
sample, where each bar is one year. With --mark, years above mean + 2σ get a ▲.

Negative values are supported with a zero line. Missing observations are skipped.`,
	Example: `  atmosight analyze Faisalabad --format jsonl | atmosight chart bar --mark`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, title, err := readChartInput()
		if err != nil {
			return err
		}
		opts := chart.BarOptions{Width: chartWidth}
		if chartMark {
			if st, ok := analyze.Describe(model.DaySample{Variable: s.Variable, Obs: s.Obs}); ok {
				opts.Mark = &st.Threshold
			}
		}
		return chart.Bar(os.Stdout, title, s.Obs, opts)
	},
}

// ─── chart plot ──────────────────────────────────────────────────────────────

var chartPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Value-by-year plot with labelled axes",
	Long: `Renders each observation as a point with Y-axis tick labels and year labels.
--trend overlays the least-squares line; the mean is always drawn.

Width auto-detects from $COLUMNS (falls back to 80). Override with --width and --height.`,
	Example: `  atmosight analyze Lahore --format jsonl | atmosight chart plot --trend
  atmosight analyze Lahore -v RH2M --format jsonl | atmosight chart plot --height 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, title, err := readChartInput()
		if err != nil {
			return err
		}
		opts := chart.PlotOptions{
			Width:    chartWidth,
			Height:   chartPlotHeight,
			Title:    title,
			ShowMean: true,
		}
		if chartTrend {
			if tr, ok := analyze.EstimateTrend(model.DaySample{Variable: s.Variable, Obs: s.Obs}); ok {
				opts.Trend = &tr
			}
		}
		return chart.Plot(os.Stdout, title, s.Obs, opts)
	},
}

// ─── chart dist ──────────────────────────────────────────────────────────────

var chartDistCmd = &cobra.Command{
	Use:   "dist",
	Short: "Normal curve fitted to the observations",
	Long: `Draws the normal distribution with the sample's mean and population
standard deviation over ±4σ, marking the mean and the mean + 2σ extreme
threshold, with the observed values as ticks below the axis.

A sample whose values are all equal has no curve and is reported as an error.`,
	Example: `  atmosight analyze Karachi -v WS2M --format jsonl | atmosight chart dist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, title, err := readChartInput()
		if err != nil {
			return err
		}
		sample := model.DaySample{Variable: s.Variable, Obs: s.Obs}
		st, ok := analyze.Describe(sample)
		if !ok {
			return fmt.Errorf("no values to describe")
		}
		return chart.Distribution(os.Stdout, title, st.Mean, st.StdDev, chart.DistOptions{
			Width:  chartWidth,
			Height: chartDistHeight,
			Values: sample.Present(),
		})
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBarCmd)
	chartCmd.AddCommand(chartPlotCmd)
	chartCmd.AddCommand(chartDistCmd)

	pf := chartCmd.PersistentFlags()
	pf.StringVarP(&chartVariable, "variable", "v", "",
		"variable to chart when the input holds several")
	pf.IntVar(&chartWidth, "width", 0,
		"chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	pf.StringVar(&chartTitle, "title", "",
		"chart title (default: variable code)")

	chartBarCmd.Flags().BoolVar(&chartMark, "mark", false,
		"flag values above mean + 2σ")
	chartPlotCmd.Flags().IntVar(&chartPlotHeight, "height", 12,
		"chart height in rows")
	chartPlotCmd.Flags().BoolVar(&chartTrend, "trend", false,
		"overlay the least-squares trend line")
	chartDistCmd.Flags().IntVar(&chartDistHeight, "height", 10,
		"chart height in rows")
}
