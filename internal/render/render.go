// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/atmosight/internal/geocode"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/pipeline"
	"github.com/derickschaefer/atmosight/internal/service"
	"github.com/derickschaefer/atmosight/internal/store"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// seriesList normalises the series_data payload, which may be one series or
// several.
func seriesList(data interface{}) ([]model.Series, bool) {
	switch v := data.(type) {
	case *model.Series:
		return []model.Series{*v}, true
	case []model.Series:
		return v, true
	}
	return nil, false
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch result.Kind {
	case model.KindSeriesData:
		list, ok := seriesList(result.Data)
		if !ok {
			return enc.Encode(result.Data)
		}
		for _, s := range list {
			if err := pipeline.WriteJSONL(w, s.Variable, s.Obs); err != nil {
				return err
			}
		}
		return nil
	case model.KindAnalysis:
		// The day sample, so analyze output can be piped into chart.
		b, ok := result.Data.(*service.Bundle)
		if !ok {
			return enc.Encode(result.Data)
		}
		return pipeline.WriteJSONL(w, b.Variable.Code, b.Analysis.Sample.Obs)
	case model.KindVariables, model.KindReports:
		return encodeEach(enc, result.Data)
	default:
		return enc.Encode(result.Data)
	}
}

func encodeEach(enc *json.Encoder, data interface{}) error {
	switch v := data.(type) {
	case []model.Variable:
		for _, x := range v {
			if err := enc.Encode(x); err != nil {
				return err
			}
		}
		return nil
	case []store.Report:
		for _, r := range v {
			if err := enc.Encode(reportSummary(r)); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.Encode(data)
}

// ─── Table ────────────────────────────────────────────────────────────────────

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindAnalysis:
		b, ok := result.Data.(*service.Bundle)
		if !ok {
			return fmt.Errorf("unexpected data type for analysis")
		}
		return renderAnalysisTable(w, b)
	case model.KindSeriesData:
		list, ok := seriesList(result.Data)
		if !ok {
			return fmt.Errorf("unexpected data type for series_data")
		}
		return renderObsTable(w, list)
	case model.KindGeocode:
		res, ok := result.Data.(*geocode.Resolution)
		if !ok {
			return fmt.Errorf("unexpected data type for geocode")
		}
		return renderKV(w, geocodeRows(res))
	case model.KindVariables:
		vars, ok := result.Data.([]model.Variable)
		if !ok {
			return fmt.Errorf("unexpected data type for variables")
		}
		tw := newTable(w, []string{"CODE", "NAME", "UNIT"})
		for _, v := range vars {
			tw.Append([]string{v.Code, v.Label, v.Unit})
		}
		tw.Render()
		return nil
	case model.KindReports:
		reports, ok := result.Data.([]store.Report)
		if !ok {
			return fmt.Errorf("unexpected data type for reports")
		}
		tw := newTable(w, []string{"ID", "LOCATION", "VARIABLE", "DATE", "CREATED"})
		for _, r := range reports {
			tw.Append([]string{r.ID, r.Location, r.Variable, r.Date, r.CreatedAt.Format("2006-01-02 15:04")})
		}
		tw.Render()
		return nil
	default:
		return renderJSON(w, result)
	}
}

func renderAnalysisTable(w io.Writer, b *service.Bundle) error {
	if err := renderKV(w, analysisRows(b)); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", Narrative(b))
	return nil
}

func renderObsTable(w io.Writer, list []model.Series) error {
	tw := newTable(w, []string{"VARIABLE", "DATE", "VALUE"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, s := range list {
		for _, o := range s.Obs {
			tw.Append([]string{s.Variable, o.Date.Format("2006-01-02"), formatValue(o.Value)})
		}
	}
	tw.Render()
	return nil
}

func renderKV(w io.Writer, rows [][2]string) error {
	tw := newTable(w, []string{"FIELD", "VALUE"})
	tw.SetColWidth(80)
	for _, r := range rows {
		tw.Append([]string{r[0], r[1]})
	}
	tw.Render()
	return nil
}

// ─── Row builders ─────────────────────────────────────────────────────────────

func geocodeRows(r *geocode.Resolution) [][2]string {
	rows := [][2]string{
		{"Query", r.Place.Query},
		{"Name", r.Place.Name},
		{"Latitude", fmt.Sprintf("%.4f", r.Place.Lat)},
		{"Longitude", fmt.Sprintf("%.4f", r.Place.Lon)},
	}
	if r.Fallback {
		rows = append(rows, [2]string{"Fallback", "yes (" + r.Reason + ")"})
	}
	return rows
}

func analysisRows(b *service.Bundle) [][2]string {
	unit := b.Variable.Unit
	a := b.Analysis
	loc := b.Location.Place.Name
	if loc == "" {
		loc = b.Location.Place.Query
	}
	if b.Location.Fallback {
		loc += " (fallback coordinates)"
	}

	rows := [][2]string{
		{"Location", loc},
		{"Coordinates", fmt.Sprintf("%.4f, %.4f", b.Location.Place.Lat, b.Location.Place.Lon)},
		{"Variable", b.Variable.Title()},
		{"Date", b.Date},
		{"Day of Year", fmt.Sprintf("%d", a.DayOfYear)},
		{"Years", fmt.Sprintf("%d-%d", b.StartYear, b.EndYear)},
		{"Status", string(a.Status)},
	}
	if s := a.Stats; s != nil {
		rows = append(rows,
			[2]string{"Samples", fmt.Sprintf("%d (%d missing)", s.Count, s.Missing)},
			[2]string{"Average", withUnit(s.Mean, unit)},
			[2]string{"Std Dev", withUnit(s.StdDev, unit)},
			[2]string{"Minimum", withUnit(s.Min, unit)},
			[2]string{"Maximum", withUnit(s.Max, unit)},
			[2]string{"Extreme Threshold", withUnit(s.Threshold, unit)},
			[2]string{"Extreme Frequency", fmt.Sprintf("%.1f%%", s.Exceedance*100)},
		)
	}
	if t := a.Trend; t != nil {
		rows = append(rows,
			[2]string{"Trend", fmt.Sprintf("%s (%+.4f %s/yr, R² %.3f)", t.Direction, t.Slope, unit, t.R2)},
		)
	}
	if in := a.Insight; in != nil {
		rows = append(rows, [2]string{"Volatility", in.Volatility})
	}
	return rows
}

func withUnit(v float64, unit string) string {
	return fmt.Sprintf("%.2f %s", v, unit)
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch result.Kind {
	case model.KindSeriesData:
		list, ok := seriesList(result.Data)
		if !ok {
			return fmt.Errorf("unexpected data type for series_data")
		}
		_ = cw.Write([]string{"variable", "date", "value", "value_raw"})
		for _, s := range list {
			for _, o := range s.Obs {
				_ = cw.Write([]string{s.Variable, o.Date.Format("2006-01-02"), formatValue(o.Value), o.ValueRaw})
			}
		}
	case model.KindAnalysis:
		b, ok := result.Data.(*service.Bundle)
		if !ok {
			return fmt.Errorf("unexpected data type for analysis")
		}
		_ = cw.Write([]string{"field", "value"})
		for _, r := range analysisRows(b) {
			_ = cw.Write([]string{r[0], r[1]})
		}
	case model.KindGeocode:
		if r, ok := result.Data.(*geocode.Resolution); ok {
			_ = cw.Write([]string{"field", "value"})
			for _, row := range geocodeRows(r) {
				_ = cw.Write([]string{row[0], row[1]})
			}
		}
	case model.KindVariables:
		if vars, ok := result.Data.([]model.Variable); ok {
			_ = cw.Write([]string{"code", "name", "unit"})
			for _, v := range vars {
				_ = cw.Write([]string{v.Code, v.Label, v.Unit})
			}
		}
	case model.KindReports:
		if reports, ok := result.Data.([]store.Report); ok {
			_ = cw.Write([]string{"id", "location", "variable", "date", "created_at"})
			for _, r := range reports {
				_ = cw.Write([]string{r.ID, r.Location, r.Variable, r.Date, r.CreatedAt.Format(time.RFC3339)})
			}
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindAnalysis:
		b, ok := result.Data.(*service.Bundle)
		if !ok {
			return renderJSON(w, result)
		}
		fmt.Fprintf(w, "| FIELD | VALUE |\n|-------|-------|\n")
		for _, r := range analysisRows(b) {
			fmt.Fprintf(w, "| %s | %s |\n", r[0], mdEscape(r[1]))
		}
		fmt.Fprintf(w, "\n%s\n", Narrative(b))
		return nil
	case model.KindSeriesData:
		list, ok := seriesList(result.Data)
		if !ok {
			return renderJSON(w, result)
		}
		fmt.Fprintf(w, "| VARIABLE | DATE | VALUE |\n|----------|------|-------|\n")
		for _, s := range list {
			for _, o := range s.Obs {
				fmt.Fprintf(w, "| %s | %s | %s |\n", s.Variable, o.Date.Format("2006-01-02"), formatValue(o.Value))
			}
		}
		return nil
	case model.KindVariables:
		if vars, ok := result.Data.([]model.Variable); ok {
			fmt.Fprintf(w, "| CODE | NAME | UNIT |\n|------|------|------|\n")
			for _, v := range vars {
				fmt.Fprintf(w, "| %s | %s | %s |\n", v.Code, v.Label, mdEscape(v.Unit))
			}
		}
		return nil
	default:
		return renderJSON(w, result)
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		if result.Stats.CacheHit {
			src = "cache"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type reportRow struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	Variable  string    `json:"variable"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

func reportSummary(r store.Report) reportRow {
	return reportRow{ID: r.ID, Location: r.Location, Variable: r.Variable, Date: r.Date, CreatedAt: r.CreatedAt}
}

// formatValue formats an observation value for display.
// Always shows at least one decimal place (e.g. 4.0, not 4).
// Missing values (NaN) render as ".".
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	s := strings.TrimRight(fmt.Sprintf("%.6f", v), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
