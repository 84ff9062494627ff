// Package util provides shared utilities: date parsing, observation value
// parsing and formatting, and error aggregation.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const (
	dateLayout    = "2006-01-02"
	compactLayout = "20060102"
)

// ParseDate parses a YYYY-MM-DD or YYYYMMDD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := dateLayout
	if len(s) == len(compactLayout) && !strings.Contains(s, "-") {
		layout = compactLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or YYYYMMDD", s)
	}
	return t, nil
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// CompactDate formats a time.Time as YYYYMMDD, the upstream wire format.
func CompactDate(t time.Time) string {
	return t.Format(compactLayout)
}

// ─── Observation Value Parsing ────────────────────────────────────────────────

// IsMissingText reports whether s is one of the explicit missing markers:
// empty, ".", "null" or "NaN" (case-insensitive).
func IsMissingText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return true
	}
	switch strings.ToLower(s) {
	case "null", "nan":
		return true
	}
	return false
}

// ParseObsValue parses an observation value string.
// Returns (NaN, nil) for explicit missing markers and an error for text that
// is neither a marker nor a number.
func ParseObsValue(s string) (float64, error) {
	if IsMissingText(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("invalid value %q", s)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return math.NaN(), fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

// FormatValue formats a float64 for display, showing "." for NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "."
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
