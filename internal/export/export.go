// Package export writes the downloadable artefacts of an analysis: the
// historical values as CSV and a ZIP bundle with the CSV, both charts, the
// insight text and a JSON summary.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zip"

	"github.com/derickschaefer/atmosight/internal/chart"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/render"
	"github.com/derickschaefer/atmosight/internal/service"
)

// Bundle entry names.
const (
	CSVName          = "historical_data.csv"
	TrendName        = "trend.png"
	DistributionName = "distribution.png"
	InsightName      = "insight.txt"
	SummaryName      = "summary.json"
)

// WriteCSV writes obs with the header "date,<Label (CODE)> [<unit>]".
// Missing values are empty cells.
func WriteCSV(w io.Writer, v model.Variable, obs []model.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", fmt.Sprintf("%s [%s]", v.Title(), v.Unit)}); err != nil {
		return err
	}
	for _, o := range obs {
		val := ""
		if !o.IsMissing() {
			val = strconv.FormatFloat(o.Value, 'f', -1, 64)
		}
		if err := cw.Write([]string{o.Date.Format("2006-01-02"), val}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBundle writes the ZIP bundle for b to w. Charts that cannot be drawn
// for the sample (no values, zero σ) are left out and reported in the
// returned skipped list.
func WriteBundle(w io.Writer, b *service.Bundle) (skipped []string, err error) {
	zw := zip.NewWriter(w)
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()

	obs := b.Analysis.Sample.Obs
	title := fmt.Sprintf("%s on %s", b.Variable.Title(), b.Date)

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, b.Variable, obs); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	if err := addFile(zw, CSVName, csvBuf.Bytes()); err != nil {
		return nil, err
	}

	var trendBuf bytes.Buffer
	if err := chart.TrendPNG(&trendBuf, title, b.Variable.Unit, obs, b.Analysis.Trend); err != nil {
		skipped = append(skipped, TrendName)
	} else if err := addFile(zw, TrendName, trendBuf.Bytes()); err != nil {
		return nil, err
	}

	if st := b.Analysis.Stats; st == nil {
		skipped = append(skipped, DistributionName)
	} else {
		var distBuf bytes.Buffer
		err := chart.DistributionPNG(&distBuf, title, b.Variable.Unit, st.Mean, st.StdDev)
		switch {
		case errors.Is(err, chart.ErrDegenerate):
			skipped = append(skipped, DistributionName)
		case err != nil:
			return nil, fmt.Errorf("drawing distribution: %w", err)
		default:
			if err := addFile(zw, DistributionName, distBuf.Bytes()); err != nil {
				return nil, err
			}
		}
	}

	if err := addFile(zw, InsightName, []byte(render.Narrative(b))); err != nil {
		return nil, err
	}

	summary, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	if err := addFile(zw, SummaryName, summary); err != nil {
		return nil, err
	}
	return skipped, nil
}

func addFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	_, err = f.Write(data)
	return err
}
