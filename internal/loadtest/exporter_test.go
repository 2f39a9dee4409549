package loadtest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestExporterMirrorsSamples(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	exporter := NewExporter(promRegistry)

	registry := NewRegistry()
	registry.Observe(exporter.Observe)

	registry.Trend(MetricHTTPReqDuration).Add(42, map[string]string{"name": "health"})
	registry.Trend(MetricHTTPReqDuration).Add(7, map[string]string{"name": "health"})
	registry.Counter(MetricHTTPReqs).Add(2, nil)
	registry.Gauge(MetricVUs).Set(5)
	registry.Check("status is 200", true)
	registry.Check("status is 200", false)

	if got := testutil.ToFloat64(exporter.counters.WithLabelValues(MetricHTTPReqs)); got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.gauges.WithLabelValues(MetricVUs)); got != 5 {
		t.Errorf("expected 5 VUs, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.checks.WithLabelValues("status is 200", "false")); got != 1 {
		t.Errorf("expected 1 failed check, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.rates.WithLabelValues(MetricChecks, "true")); got != 1 {
		t.Errorf("expected 1 passing checks sample, got %v", got)
	}

	families, err := promRegistry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var histogram *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "loadtest_trend_milliseconds" {
			histogram = mf.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil {
		t.Fatal("expected trend histogram to be exported")
	}
	if histogram.GetSampleCount() != 2 || histogram.GetSampleSum() != 49 {
		t.Errorf("expected 2 samples summing to 49, got %d and %v", histogram.GetSampleCount(), histogram.GetSampleSum())
	}
}
