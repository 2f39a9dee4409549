package loadtest

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Built-in metric names.
const (
	MetricHTTPReqDuration   = "http_req_duration"
	MetricHTTPReqs          = "http_reqs"
	MetricHTTPReqFailed     = "http_req_failed"
	MetricIterations        = "iterations"
	MetricIterationDuration = "iteration_duration"
	MetricVUs               = "vus"
	MetricVUsMax            = "vus_max"
	MetricChecks            = "checks"
)

// Kind identifies how a metric aggregates its samples.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindRate
	KindTrend
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindRate:
		return "rate"
	case KindTrend:
		return "trend"
	default:
		return "unknown"
	}
}

// Sample is a single observation emitted while a run is in progress.
type Sample struct {
	Time   time.Time
	Metric string
	Kind   Kind
	Value  float64
	Tags   map[string]string
}

// Observer receives every sample recorded by a Registry.
type Observer func(Sample)

// Metric is an aggregated run metric.
type Metric interface {
	Name() string
	Kind() Kind
	// Value returns the named aggregation, e.g. "p(95)", "avg" or "rate".
	Value(agg string) (float64, error)
}

// Registry holds the metrics of a single run.
type Registry struct {
	mu        sync.RWMutex
	metrics   map[string]Metric
	checks    map[string]*CheckResult
	order     []string
	observers []Observer
}

// NewRegistry creates a registry holding only the checks rate.
func NewRegistry() *Registry {
	r := &Registry{
		metrics: make(map[string]Metric),
		checks:  make(map[string]*CheckResult),
	}
	r.Rate(MetricChecks)
	return r
}

// Observe registers an observer. Observers must be added before the run starts.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) emit(s Sample) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()

	if len(observers) == 0 {
		return
	}
	s.Time = time.Now()
	for _, o := range observers {
		o(s)
	}
}

func (r *Registry) getOrCreate(name string, kind Kind, create func() Metric) Metric {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metrics[name]; ok {
		if m.Kind() != kind {
			panic(fmt.Sprintf("metric %q already registered as %s", name, m.Kind()))
		}
		return m
	}

	m := create()
	r.metrics[name] = m
	return m
}

// Counter returns the counter with the given name, creating it if needed.
func (r *Registry) Counter(name string) *Counter {
	return r.getOrCreate(name, KindCounter, func() Metric {
		return &Counter{name: name, registry: r}
	}).(*Counter)
}

// Gauge returns the gauge with the given name, creating it if needed.
func (r *Registry) Gauge(name string) *Gauge {
	return r.getOrCreate(name, KindGauge, func() Metric {
		return &Gauge{name: name, registry: r}
	}).(*Gauge)
}

// Rate returns the rate with the given name, creating it if needed.
func (r *Registry) Rate(name string) *Rate {
	return r.getOrCreate(name, KindRate, func() Metric {
		return &Rate{name: name, registry: r}
	}).(*Rate)
}

// Trend returns the trend with the given name, creating it if needed.
func (r *Registry) Trend(name string) *Trend {
	return r.getOrCreate(name, KindTrend, func() Metric {
		return &Trend{name: name, registry: r}
	}).(*Trend)
}

// Get looks up a metric by name.
func (r *Registry) Get(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	return m, ok
}

// All returns every registered metric sorted by name.
func (r *Registry) All() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name() < all[j].Name()
	})
	return all
}

// CheckResult counts the outcomes of one named check.
type CheckResult struct {
	Name   string
	Passes uint64
	Fails  uint64
}

// Check records the outcome of a named check and returns ok. Every check
// also feeds the "checks" rate.
func (r *Registry) Check(name string, ok bool) bool {
	r.mu.Lock()
	result, exists := r.checks[name]
	if !exists {
		result = &CheckResult{Name: name}
		r.checks[name] = result
		r.order = append(r.order, name)
	}
	if ok {
		result.Passes++
	} else {
		result.Fails++
	}
	r.mu.Unlock()

	r.Rate(MetricChecks).add(ok, map[string]string{"check": name})
	return ok
}

// Checks returns check results in the order they were first recorded.
func (r *Registry) Checks() []CheckResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]CheckResult, 0, len(r.order))
	for _, name := range r.order {
		results = append(results, *r.checks[name])
	}
	return results
}

// Counter sums added values.
type Counter struct {
	name     string
	registry *Registry
	mu       sync.Mutex
	total    float64
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Kind() Kind   { return KindCounter }

// Add increments the counter by v.
func (c *Counter) Add(v float64, tags map[string]string) {
	c.mu.Lock()
	c.total += v
	c.mu.Unlock()
	c.registry.emit(Sample{Metric: c.name, Kind: KindCounter, Value: v, Tags: tags})
}

// Count returns the current total.
func (c *Counter) Count() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Counter) Value(agg string) (float64, error) {
	switch agg {
	case "count":
		return c.Count(), nil
	default:
		return 0, unsupported(c, agg)
	}
}

// Gauge holds the last set value along with the observed extremes.
type Gauge struct {
	name     string
	registry *Registry
	mu       sync.Mutex
	set      bool
	value    float64
	min      float64
	max      float64
}

func (g *Gauge) Name() string { return g.name }
func (g *Gauge) Kind() Kind   { return KindGauge }

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	if !g.set || v < g.min {
		g.min = v
	}
	if !g.set || v > g.max {
		g.max = v
	}
	g.value = v
	g.set = true
	g.mu.Unlock()
	g.registry.emit(Sample{Metric: g.name, Kind: KindGauge, Value: v})
}

func (g *Gauge) Value(agg string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch agg {
	case "value":
		return g.value, nil
	case "min":
		return g.min, nil
	case "max":
		return g.max, nil
	default:
		return 0, unsupported(g, agg)
	}
}

// Rate tracks the fraction of true samples.
type Rate struct {
	name     string
	registry *Registry
	trues    atomic.Uint64
	total    atomic.Uint64
}

func (r *Rate) Name() string { return r.name }
func (r *Rate) Kind() Kind   { return KindRate }

// Add records one boolean sample.
func (r *Rate) Add(ok bool) {
	r.add(ok, nil)
}

func (r *Rate) add(ok bool, tags map[string]string) {
	r.total.Add(1)
	v := 0.0
	if ok {
		r.trues.Add(1)
		v = 1
	}
	r.registry.emit(Sample{Metric: r.name, Kind: KindRate, Value: v, Tags: tags})
}

// Counts returns the number of true samples and the total number of samples.
func (r *Rate) Counts() (trues, total uint64) {
	return r.trues.Load(), r.total.Load()
}

// Ratio returns trues/total, or zero when nothing was recorded.
func (r *Rate) Ratio() float64 {
	trues, total := r.Counts()
	if total == 0 {
		return 0
	}
	return float64(trues) / float64(total)
}

func (r *Rate) Value(agg string) (float64, error) {
	switch agg {
	case "rate":
		return r.Ratio(), nil
	case "count":
		_, total := r.Counts()
		return float64(total), nil
	default:
		return 0, unsupported(r, agg)
	}
}

// Trend keeps every sample and computes exact statistics over them.
// Durations are recorded in milliseconds.
type Trend struct {
	name     string
	registry *Registry
	mu       sync.Mutex
	samples  []float64
	sorted   bool
	sum      float64
}

func (t *Trend) Name() string { return t.name }
func (t *Trend) Kind() Kind   { return KindTrend }

// Add records one sample.
func (t *Trend) Add(v float64, tags map[string]string) {
	t.mu.Lock()
	t.samples = append(t.samples, v)
	t.sorted = false
	t.sum += v
	t.mu.Unlock()
	t.registry.emit(Sample{Metric: t.name, Kind: KindTrend, Value: v, Tags: tags})
}

// AddDuration records d in milliseconds.
func (t *Trend) AddDuration(d time.Duration, tags map[string]string) {
	t.Add(float64(d)/float64(time.Millisecond), tags)
}

// Len returns the number of samples.
func (t *Trend) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Percentile returns the p-th percentile (0-100) using linear
// interpolation between the closest ranks.
func (t *Trend) Percentile(p float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentileLocked(p)
}

func (t *Trend) percentileLocked(p float64) float64 {
	n := len(t.samples)
	if n == 0 {
		return 0
	}
	if !t.sorted {
		sort.Float64s(t.samples)
		t.sorted = true
	}

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return t.samples[lower]
	}
	weight := rank - float64(lower)
	return t.samples[lower]*(1-weight) + t.samples[upper]*weight
}

func (t *Trend) Value(agg string) (float64, error) {
	if p, ok := parsePercentile(agg); ok {
		return t.Percentile(p), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.samples)
	switch agg {
	case "avg":
		if n == 0 {
			return 0, nil
		}
		return t.sum / float64(n), nil
	case "min":
		return t.percentileLocked(0), nil
	case "max":
		return t.percentileLocked(100), nil
	case "med":
		return t.percentileLocked(50), nil
	case "count":
		return float64(n), nil
	default:
		return 0, unsupported(t, agg)
	}
}

func unsupported(m Metric, agg string) error {
	return fmt.Errorf("aggregation %q is not supported by %s metric %q", agg, m.Kind(), m.Name())
}
