package collectors

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StoreCollector probes the key-value store on every collection interval
type StoreCollector struct {
	deps *CollectorDependencies

	// storeUp: 1 when the last probe succeeded, 0 otherwise
	// pingDuration: round trip of the last successful probe
	// pingFailures: probes that failed since start
	storeUp      prometheus.Gauge
	pingDuration prometheus.Gauge
	pingFailures prometheus.Counter
}

// NewStoreCollector creates a new StoreCollector
func NewStoreCollector(deps *CollectorDependencies) *StoreCollector {
	return &StoreCollector{
		deps: deps,
		storeUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_store_up",
				Help: "Key-value store answered the last probe (1) or not (0)",
			},
		),
		pingDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_store_ping_duration_seconds",
				Help: "Round trip of the last successful store probe in seconds",
			},
		),
		pingFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_store_ping_failures_total",
				Help: "Number of failed store probes",
			},
		),
	}
}

func (c *StoreCollector) Name() string {
	return "store"
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	c.storeUp.Describe(ch)
	c.pingDuration.Describe(ch)
	c.pingFailures.Describe(ch)
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	c.storeUp.Collect(ch)
	c.pingDuration.Collect(ch)
	c.pingFailures.Collect(ch)
}

// CollectMetrics pings the store once. A failed probe is recorded, not returned.
func (c *StoreCollector) CollectMetrics(ctx context.Context) error {
	timeout := c.deps.Config.Metrics.ProbeTimeout.Duration
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := c.deps.Store.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		c.deps.Logger.Warn("Store probe failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		c.storeUp.Set(0)
		c.pingFailures.Inc()
		return nil
	}

	c.storeUp.Set(1)
	c.pingDuration.Set(elapsed.Seconds())
	return nil
}
