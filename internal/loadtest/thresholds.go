package loadtest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	thresholdPattern  = regexp.MustCompile(`^\s*([a-z]+(?:\(\s*[0-9.]+\s*\))?)\s*(<=|>=|==|!=|<|>)\s*(-?[0-9]+(?:\.[0-9]+)?)\s*$`)
	percentilePattern = regexp.MustCompile(`^p\(\s*([0-9]+(?:\.[0-9]+)?)\s*\)$`)
)

// Threshold is a pass/fail condition on an aggregated metric, written as
// "<aggregation> <operator> <value>", for example "p(95)<500" or "rate<0.1".
type Threshold struct {
	Metric      string
	Source      string
	Aggregation string
	Operator    string
	Bound       float64
}

// ParseThreshold parses a single threshold expression for metric.
func ParseThreshold(metric, expr string) (Threshold, error) {
	m := thresholdPattern.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q for %s", expr, metric)
	}

	agg := strings.ReplaceAll(m[1], " ", "")
	if strings.HasPrefix(agg, "p(") {
		p, ok := parsePercentile(agg)
		if !ok || p < 0 || p > 100 {
			return Threshold{}, fmt.Errorf("invalid percentile in threshold %q for %s", expr, metric)
		}
	}

	bound, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid bound in threshold %q for %s: %w", expr, metric, err)
	}

	return Threshold{
		Metric:      metric,
		Source:      strings.TrimSpace(expr),
		Aggregation: agg,
		Operator:    m[2],
		Bound:       bound,
	}, nil
}

// ParseThresholds parses a metric -> expressions map. The result is sorted
// by metric name, keeping the expression order within a metric.
func ParseThresholds(exprs map[string][]string) ([]Threshold, error) {
	metrics := make([]string, 0, len(exprs))
	for metric := range exprs {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var thresholds []Threshold
	for _, metric := range metrics {
		for _, expr := range exprs[metric] {
			t, err := ParseThreshold(metric, expr)
			if err != nil {
				return nil, err
			}
			thresholds = append(thresholds, t)
		}
	}
	return thresholds, nil
}

func parsePercentile(agg string) (float64, bool) {
	m := percentilePattern.FindStringSubmatch(agg)
	if m == nil {
		return 0, false
	}
	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

func (t Threshold) String() string {
	return fmt.Sprintf("%s %s", t.Metric, t.Source)
}

func (t Threshold) holds(actual float64) bool {
	switch t.Operator {
	case "<":
		return actual < t.Bound
	case "<=":
		return actual <= t.Bound
	case ">":
		return actual > t.Bound
	case ">=":
		return actual >= t.Bound
	case "==":
		return actual == t.Bound
	case "!=":
		return actual != t.Bound
	default:
		return false
	}
}

// validate reports whether the threshold can be evaluated against registry.
func (t Threshold) validate(registry *Registry) error {
	m, ok := registry.Get(t.Metric)
	if !ok {
		return fmt.Errorf("threshold %q refers to unknown metric %q", t.Source, t.Metric)
	}
	if _, err := m.Value(t.Aggregation); err != nil {
		return fmt.Errorf("threshold %q: %w", t.Source, err)
	}
	return nil
}

// ThresholdResult is the outcome of one threshold at the end of a run.
type ThresholdResult struct {
	Threshold Threshold
	Actual    float64
	Passed    bool
	Err       error
}

// EvaluateThresholds evaluates every threshold against the final metrics.
func EvaluateThresholds(registry *Registry, thresholds []Threshold) []ThresholdResult {
	results := make([]ThresholdResult, 0, len(thresholds))
	for _, t := range thresholds {
		result := ThresholdResult{Threshold: t}
		if err := t.validate(registry); err != nil {
			result.Err = err
		} else {
			m, _ := registry.Get(t.Metric)
			result.Actual, _ = m.Value(t.Aggregation)
			result.Passed = t.holds(result.Actual)
		}
		results = append(results, result)
	}
	return results
}

// ThresholdError is returned when at least one threshold failed.
type ThresholdError struct {
	Failed []ThresholdResult
}

func (e *ThresholdError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		names = append(names, r.Threshold.String())
	}
	return "thresholds crossed: " + strings.Join(names, ", ")
}
