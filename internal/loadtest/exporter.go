package loadtest

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter mirrors run samples into prometheus metrics so a run can be
// watched while it is in progress.
type Exporter struct {
	trends   *prometheus.HistogramVec
	rates    *prometheus.CounterVec
	counters *prometheus.CounterVec
	gauges   *prometheus.GaugeVec
	checks   *prometheus.CounterVec
}

// NewExporter creates an exporter and registers its metrics with reg.
func NewExporter(reg prometheus.Registerer) *Exporter {
	e := &Exporter{
		trends: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadtest_trend_milliseconds",
				Help:    "Trend samples such as request durations, in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"metric", "name"},
		),
		rates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_rate_samples_total",
				Help: "Boolean rate samples by outcome",
			},
			[]string{"metric", "outcome"},
		),
		counters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_counter_total",
				Help: "Counter metrics recorded by the run",
			},
			[]string{"metric"},
		),
		gauges: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loadtest_gauge",
				Help: "Gauge metrics recorded by the run, such as active VUs",
			},
			[]string{"metric"},
		),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_checks_total",
				Help: "Check outcomes by check name",
			},
			[]string{"check", "outcome"},
		),
	}

	reg.MustRegister(e.trends, e.rates, e.counters, e.gauges, e.checks)
	return e
}

// Observe is an Observer that records s.
func (e *Exporter) Observe(s Sample) {
	switch s.Kind {
	case KindTrend:
		e.trends.WithLabelValues(s.Metric, s.Tags["name"]).Observe(s.Value)
	case KindRate:
		outcome := strconv.FormatBool(s.Value != 0)
		e.rates.WithLabelValues(s.Metric, outcome).Inc()
		if check, ok := s.Tags["check"]; ok {
			e.checks.WithLabelValues(check, outcome).Inc()
		}
	case KindCounter:
		e.counters.WithLabelValues(s.Metric).Add(s.Value)
	case KindGauge:
		e.gauges.WithLabelValues(s.Metric).Set(s.Value)
	}
}
