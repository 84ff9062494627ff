// Package pipeline reads and writes observation streams in JSONL, the pipe
// format between commands (obs get | chart, obs get | analyze --stdin).
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/util"
)

// Row is one JSONL record. Value is null for a missing observation.
type Row struct {
	SeriesID string   `json:"series_id"`
	Date     string   `json:"date"`
	Value    *float64 `json:"value"`
	ValueRaw string   `json:"value_raw"`
}

type inRow struct {
	SeriesID string      `json:"series_id"`
	Date     string      `json:"date"`
	Value    interface{} `json:"value"`
	ValueRaw string      `json:"value_raw"`
}

// ReadSeries reads JSONL records from r and groups them by series_id in the
// order each id first appears. Records without an id are grouped under "".
// Each line must carry at least "date" and "value".
func ReadSeries(r io.Reader) ([]model.Series, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	index := map[string]int{}
	var out []model.Series
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec inRow
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		o, err := toObservation(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		i, ok := index[rec.SeriesID]
		if !ok {
			i = len(out)
			index[rec.SeriesID] = i
			out = append(out, model.Series{Variable: rec.SeriesID})
		}
		out[i].Obs = append(out[i].Obs, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no observations read from input (is stdin empty?)")
	}
	return out, nil
}

// ReadObservations reads a single series from r. Input carrying more than
// one series_id is rejected unless want names the one to keep.
func ReadObservations(r io.Reader, want string) (model.Series, error) {
	list, err := ReadSeries(r)
	if err != nil {
		return model.Series{}, err
	}
	if want != "" {
		want = strings.ToUpper(want)
		for _, s := range list {
			if strings.ToUpper(s.Variable) == want {
				return s, nil
			}
		}
		return model.Series{}, fmt.Errorf("series %q not present in input", want)
	}
	if len(list) > 1 {
		ids := make([]string, len(list))
		for i, s := range list {
			ids[i] = s.Variable
		}
		sort.Strings(ids)
		return model.Series{}, fmt.Errorf("input holds %d series (%s); choose one with --variable", len(list), strings.Join(ids, ", "))
	}
	return list[0], nil
}

func toObservation(rec inRow) (model.Observation, error) {
	date, err := time.Parse("2006-01-02", rec.Date)
	if err != nil {
		return model.Observation{}, fmt.Errorf("invalid date %q", rec.Date)
	}
	o := model.Observation{Date: date, ValueRaw: rec.ValueRaw}
	switch v := rec.Value.(type) {
	case nil:
		o.Value = math.NaN()
	case float64:
		o.Value = v
		if o.ValueRaw == "" {
			o.ValueRaw = util.FormatValue(v)
		}
	case string:
		val, err := util.ParseObsValue(v)
		if err != nil {
			return model.Observation{}, err
		}
		o.Value = val
		if o.ValueRaw == "" && !math.IsNaN(val) {
			o.ValueRaw = v
		}
	default:
		return model.Observation{}, fmt.Errorf("unexpected value type %T", rec.Value)
	}
	return o, nil
}

// WriteJSONL writes observations as JSONL rows tagged with seriesID.
func WriteJSONL(w io.Writer, seriesID string, obs []model.Observation) error {
	enc := json.NewEncoder(w)
	for _, o := range obs {
		row := Row{SeriesID: seriesID, Date: o.Date.Format("2006-01-02"), ValueRaw: o.ValueRaw}
		if !o.IsMissing() {
			v := o.Value
			row.Value = &v
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
