package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/derickschaefer/atmosight/internal/analyze"
	"github.com/derickschaefer/atmosight/internal/service"
)

// Narrative writes the plain-language insight for an analysis bundle.
func Narrative(b *service.Bundle) string {
	a := b.Analysis
	subject := strings.ToLower(b.Variable.Title())
	day := dayLabel(b)
	place := b.Location.Place.Query
	if place == "" {
		place = b.Location.Place.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather insight for %s\n\n", place)

	if a.Stats == nil {
		fmt.Fprintf(&sb, "No %s observations exist for %s between %d and %d, so there is %s to describe.\n",
			subject, day, b.StartYear, b.EndYear, analyze.InsufficientData)
		return sb.String()
	}

	if a.Trend != nil {
		fmt.Fprintf(&sb, "On %s, %s has shown %s %s pattern between %d and %d.\n\n",
			day, subject, article(string(a.Trend.Direction)), a.Trend.Direction, b.StartYear, b.EndYear)
	} else {
		fmt.Fprintf(&sb, "On %s there is %s to judge a trend in %s.\n\n", day, analyze.InsufficientData, subject)
	}
	fmt.Fprintf(&sb, "• Typical value: %.2f %s\n", a.Stats.Mean, b.Variable.Unit)
	fmt.Fprintf(&sb, "• Rare extremes occurred in ~%.1f%% of years\n", a.Stats.Exceedance*100)

	if a.Insight != nil {
		fmt.Fprintf(&sb, "\nThis means the selected day is historically %s, based on NASA observations.\n", a.Insight.Volatility)
	}
	return sb.String()
}

func dayLabel(b *service.Bundle) string {
	if t, err := time.Parse("2006-01-02", b.Date); err == nil && analyze.DayOfYear(t) == b.Analysis.DayOfYear {
		return t.Format("January 02")
	}
	return fmt.Sprintf("day %d", b.Analysis.DayOfYear)
}

func article(word string) string {
	if word != "" && strings.ContainsRune("aeiou", rune(word[0])) {
		return "an"
	}
	return "a"
}
