package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/qqeval/pkg/models"
)

const (
	nameWidth = 30
	ruleWidth = 50
	// barStep is the rate, in percent, that one bar segment represents.
	barStep = 5
)

// Comparison writes the comparison table for stats. Conditions are listed by
// descending rate, followed by each non-baseline condition's difference from
// the baseline in percentage points.
func Comparison(w io.Writer, stats map[string]models.AggregateStat, baselineID string) {
	rows := make([]models.AggregateStat, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, s)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rate != rows[j].Rate {
			return rows[i].Rate > rows[j].Rate
		}
		return rows[i].ConditionID < rows[j].ConditionID
	})

	bold := color.New(color.Bold)
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	bold.Fprintln(w, "COMPARISON SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "%-*s %10s %10s\n", nameWidth, "Condition", "Rate", "Count")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))

	for _, s := range rows {
		pct := s.Rate * 100
		count := fmt.Sprintf("%d/%d", s.DetectedCount, s.TotalRuns)
		line := fmt.Sprintf("%-*s %9.0f%% %10s  %s", nameWidth, s.ConditionID, pct, count, Bar(s.Rate))
		if s.ErrorCount > 0 {
			line += color.YellowString("  (%d errors)", s.ErrorCount)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))

	for _, s := range rows {
		if s.ConditionID == baselineID {
			continue
		}
		if s.DeltaVsBaseline == nil {
			fmt.Fprintf(w, "%s vs baseline: n/a\n", s.ConditionID)
			continue
		}
		fmt.Fprintf(w, "%s vs baseline: %s\n", s.ConditionID, FormatDelta(*s.DeltaVsBaseline))
	}
}

// Bar renders a rate in [0,1] as one block per five percent.
func Bar(rate float64) string {
	n := int(rate * 100 / barStep)
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}

// FormatDelta renders a signed percentage-point difference. Reductions are
// green and increases red.
func FormatDelta(ppt float64) string {
	text := fmt.Sprintf("%+.0f percentage points", ppt)
	switch {
	case ppt < 0:
		return color.GreenString(text)
	case ppt > 0:
		return color.RedString(text)
	default:
		return text
	}
}

// Progress returns the one-line status printed after each cell.
func Progress(r models.RunResult) string {
	switch {
	case r.Failed():
		return color.YellowString("ERROR: %s", r.Error)
	case r.Detected:
		return color.RedString("✗ COMMENT [%s]: %q", r.DetectionMethod.Short(), snippet(r.MatchedPhrase, 30))
	case r.Warning != "":
		return color.GreenString("✓ Clean") + color.YellowString(" (%s)", r.Warning)
	default:
		return color.GreenString("✓ Clean")
	}
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
