package loadtest

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestTrendAggregations(t *testing.T) {
	r := NewRegistry()
	trend := r.Trend(MetricHTTPReqDuration)
	for i := 1; i <= 100; i++ {
		trend.Add(float64(i), nil)
	}

	tests := []struct {
		agg  string
		want float64
	}{
		{"min", 1},
		{"max", 100},
		{"avg", 50.5},
		{"med", 50.5},
		{"p(90)", 90.1},
		{"p(95)", 95.05},
		{"p(99.9)", 99.901},
		{"count", 100},
	}

	for _, tt := range tests {
		got, err := trend.Value(tt.agg)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.agg, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", tt.agg, tt.want, got)
		}
	}

	if _, err := trend.Value("rate"); err == nil {
		t.Error("expected error for unsupported aggregation")
	}
}

func TestTrendEmpty(t *testing.T) {
	trend := NewRegistry().Trend("empty")
	if got := trend.Percentile(95); got != 0 {
		t.Errorf("expected 0 for empty trend, got %v", got)
	}
	if got, _ := trend.Value("avg"); got != 0 {
		t.Errorf("expected 0 avg for empty trend, got %v", got)
	}
}

func TestTrendAddDuration(t *testing.T) {
	trend := NewRegistry().Trend("latency")
	trend.AddDuration(1500*time.Microsecond, nil)
	if got, _ := trend.Value("max"); got != 1.5 {
		t.Errorf("expected 1.5ms, got %v", got)
	}
}

func TestRate(t *testing.T) {
	rate := NewRegistry().Rate(MetricErrors)
	if rate.Ratio() != 0 {
		t.Errorf("expected 0 ratio without samples, got %v", rate.Ratio())
	}

	rate.Add(true)
	rate.Add(false)
	rate.Add(false)
	rate.Add(false)

	if got, _ := rate.Value("rate"); got != 0.25 {
		t.Errorf("expected rate 0.25, got %v", got)
	}
	if got, _ := rate.Value("count"); got != 4 {
		t.Errorf("expected count 4, got %v", got)
	}
}

func TestGauge(t *testing.T) {
	gauge := NewRegistry().Gauge(MetricVUs)
	for _, v := range []float64{3, 7, 1} {
		gauge.Set(v)
	}

	for agg, want := range map[string]float64{"value": 1, "min": 1, "max": 7} {
		if got, _ := gauge.Value(agg); got != want {
			t.Errorf("%s: expected %v, got %v", agg, want, got)
		}
	}
}

func TestRegistryKindMismatchPanics(t *testing.T) {
	r := NewRegistry()
	r.Counter("requests")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on kind mismatch")
		}
	}()
	r.Trend("requests")
}

func TestRegistryChecks(t *testing.T) {
	r := NewRegistry()

	r.Check("status is 200", true)
	r.Check("value matches", false)
	if !r.Check("status is 200", true) {
		t.Error("expected Check to return its outcome")
	}

	checks := r.Checks()
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks[0].Name != "status is 200" || checks[0].Passes != 2 || checks[0].Fails != 0 {
		t.Errorf("unexpected first check %+v", checks[0])
	}
	if checks[1].Name != "value matches" || checks[1].Fails != 1 {
		t.Errorf("unexpected second check %+v", checks[1])
	}

	m, ok := r.Get(MetricChecks)
	if !ok {
		t.Fatal("expected checks rate to exist")
	}
	if got, _ := m.Value("rate"); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("expected checks rate 2/3, got %v", got)
	}
}

func TestRegistryObserver(t *testing.T) {
	r := NewRegistry()

	var (
		mu      sync.Mutex
		samples []Sample
	)
	r.Observe(func(s Sample) {
		mu.Lock()
		samples = append(samples, s)
		mu.Unlock()
	})

	r.Counter(MetricHTTPReqs).Add(1, map[string]string{"name": "health"})
	r.Trend(MetricHTTPReqDuration).Add(12, nil)

	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Metric != MetricHTTPReqs || samples[0].Kind != KindCounter || samples[0].Tags["name"] != "health" {
		t.Errorf("unexpected sample %+v", samples[0])
	}
	if samples[1].Time.IsZero() {
		t.Error("expected sample timestamp")
	}
}

func TestRegistryAllSorted(t *testing.T) {
	r := NewRegistry()
	r.Trend("b")
	r.Counter("a")

	all := r.All()
	names := make([]string, 0, len(all))
	for _, m := range all {
		names = append(names, m.Name())
	}
	want := []string{"a", "b", MetricChecks}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}
