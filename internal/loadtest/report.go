package loadtest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	green     = color.New(color.FgGreen).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
	checkMark = green("✓")
	crossMark = red("✗")
)

const metricColumn = 32

// Report writes a human-readable summary of the run to w.
func (r *Result) Report(w io.Writer) {
	fmt.Fprintf(w, "\n  run %s finished in %s\n\n", faint(r.RunID), r.Duration.Round(time.Millisecond))

	for _, c := range r.Checks {
		mark := checkMark
		if c.Fails > 0 {
			mark = crossMark
		}
		fmt.Fprintf(w, "  %s %s\n", mark, c.Name)
		if c.Fails > 0 {
			total := c.Passes + c.Fails
			fmt.Fprintf(w, "    ↳  %d%% - %s %d / %s %d\n",
				c.Passes*100/total, checkMark, c.Passes, crossMark, c.Fails)
		}
	}
	if len(r.Checks) > 0 {
		fmt.Fprintln(w)
	}

	failing := make(map[string]bool)
	for _, t := range r.Thresholds {
		if !t.Passed {
			failing[t.Threshold.Metric] = true
		}
	}
	thresholded := make(map[string]bool)
	for _, t := range r.Thresholds {
		thresholded[t.Threshold.Metric] = true
	}

	for _, m := range r.Metrics {
		mark := " "
		if thresholded[m.Name()] {
			mark = checkMark
			if failing[m.Name()] {
				mark = crossMark
			}
		}
		dots := strings.Repeat(".", max(1, metricColumn-len(m.Name())))
		fmt.Fprintf(w, "%s %s%s: %s\n", mark, m.Name(), faint(dots), r.summarize(m))
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintf(w, "\n  thresholds:\n")
		for _, t := range r.Thresholds {
			switch {
			case t.Err != nil:
				fmt.Fprintf(w, "  %s %s (%v)\n", crossMark, t.Threshold, t.Err)
			case t.Passed:
				fmt.Fprintf(w, "  %s %s (actual %s)\n", checkMark, t.Threshold, formatFloat(t.Actual))
			default:
				fmt.Fprintf(w, "  %s %s (actual %s)\n", crossMark, t.Threshold, formatFloat(t.Actual))
			}
		}
	}

	if r.Passed() {
		fmt.Fprintf(w, "\n%s %s\n", bold("PASSED"), checkMark)
	} else {
		fmt.Fprintf(w, "\n%s %s\n", bold("FAILED"), crossMark)
	}
}

func (r *Result) summarize(m Metric) string {
	switch metric := m.(type) {
	case *Trend:
		parts := make([]string, 0, 6)
		for _, agg := range []string{"avg", "min", "med", "max", "p(90)", "p(95)"} {
			v, _ := metric.Value(agg)
			parts = append(parts, fmt.Sprintf("%s=%sms", agg, formatFloat(v)))
		}
		return strings.Join(parts, " ")
	case *Rate:
		trues, total := metric.Counts()
		return fmt.Sprintf("%.2f%% %s %d %s %d", metric.Ratio()*100, checkMark, trues, crossMark, total-trues)
	case *Counter:
		count := metric.Count()
		perSecond := 0.0
		if secs := r.Duration.Seconds(); secs > 0 {
			perSecond = count / secs
		}
		return fmt.Sprintf("%s %s/s", formatFloat(count), formatFloat(perSecond))
	case *Gauge:
		value, _ := metric.Value("value")
		lo, _ := metric.Value("min")
		hi, _ := metric.Value("max")
		return fmt.Sprintf("%s min=%s max=%s", formatFloat(value), formatFloat(lo), formatFloat(hi))
	default:
		return ""
	}
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
