package loadtest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		expr    string
		agg     string
		op      string
		bound   float64
		wantErr bool
	}{
		{expr: "p(95)<500", agg: "p(95)", op: "<", bound: 500},
		{expr: "rate<0.1", agg: "rate", op: "<", bound: 0.1},
		{expr: " avg <= 200 ", agg: "avg", op: "<=", bound: 200},
		{expr: "count>0", agg: "count", op: ">", bound: 0},
		{expr: "p(99.9)>=1.5", agg: "p(99.9)", op: ">=", bound: 1.5},
		{expr: "max==-1", agg: "max", op: "==", bound: -1},
		{expr: "min!=3", agg: "min", op: "!=", bound: 3},
		{expr: "p(101)<1", wantErr: true},
		{expr: "p95<500", wantErr: true},
		{expr: "rate<", wantErr: true},
		{expr: "rate=0.1", wantErr: true},
		{expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			th, err := ParseThreshold(MetricHTTPReqDuration, tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", th)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if th.Aggregation != tt.agg || th.Operator != tt.op || th.Bound != tt.bound {
				t.Errorf("expected %s %s %v, got %s %s %v", tt.agg, tt.op, tt.bound, th.Aggregation, th.Operator, th.Bound)
			}
		})
	}
}

func TestParseThresholdsSorted(t *testing.T) {
	thresholds, err := ParseThresholds(map[string][]string{
		MetricHTTPReqDuration: {"p(95)<500", "avg<200"},
		MetricErrors:          {"rate<0.1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, th := range thresholds {
		got = append(got, th.String())
	}
	want := "errors rate<0.1|http_req_duration p(95)<500|http_req_duration avg<200"
	if strings.Join(got, "|") != want {
		t.Errorf("expected %s, got %s", want, strings.Join(got, "|"))
	}
}

func TestEvaluateThresholds(t *testing.T) {
	r := NewRegistry()
	trend := r.Trend(MetricHTTPReqDuration)
	for _, v := range []float64{100, 200, 300, 400, 900} {
		trend.Add(v, nil)
	}
	errRate := r.Rate(MetricErrors)
	errRate.Add(false)
	errRate.Add(false)

	thresholds, err := ParseThresholds(map[string][]string{
		MetricHTTPReqDuration: {"p(95)<500", "med<=300"},
		MetricErrors:          {"rate<0.1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := EvaluateThresholds(r, thresholds)
	passed := map[string]bool{}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("unexpected evaluation error: %v", res.Err)
		}
		passed[res.Threshold.Source] = res.Passed
	}

	if passed["p(95)<500"] {
		t.Error("expected p(95)<500 to fail")
	}
	if !passed["med<=300"] {
		t.Error("expected med<=300 to pass")
	}
	if !passed["rate<0.1"] {
		t.Error("expected rate<0.1 to pass")
	}

	result := &Result{Thresholds: results}
	if result.Passed() {
		t.Error("expected result to fail")
	}
	var thresholdErr *ThresholdError
	if !errors.As(result.Err(), &thresholdErr) {
		t.Fatalf("expected ThresholdError, got %v", result.Err())
	}
	if len(thresholdErr.Failed) != 1 || !strings.Contains(thresholdErr.Error(), "http_req_duration p(95)<500") {
		t.Errorf("unexpected threshold error %q", thresholdErr.Error())
	}
}

func TestThresholdValidate(t *testing.T) {
	r := NewRegistry()
	r.Counter(MetricHTTPReqs)

	unknown, _ := ParseThreshold("nope", "rate<0.1")
	if err := unknown.validate(r); err == nil {
		t.Error("expected error for unknown metric")
	}

	wrongAgg, _ := ParseThreshold(MetricHTTPReqs, "p(95)<1")
	if err := wrongAgg.validate(r); err == nil {
		t.Error("expected error for unsupported aggregation")
	}

	ok, _ := ParseThreshold(MetricHTTPReqs, "count>0")
	if err := ok.validate(r); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
