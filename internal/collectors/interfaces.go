package collectors

import (
	"context"

	"github.com/nurburg-dev/redis-sample-project/internal/config"
	"github.com/nurburg-dev/redis-sample-project/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector is a prometheus collector that refreshes its values on the
// server's collection interval.
type Collector interface {
	prometheus.Collector
	Name() string
	CollectMetrics(ctx context.Context) error
}

type CollectorDependencies struct {
	Store  store.Store
	Logger *zap.Logger
	Config *config.Config
}
