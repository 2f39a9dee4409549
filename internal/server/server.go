package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nurburg-dev/redis-sample-project/internal/collectors"
	"github.com/nurburg-dev/redis-sample-project/internal/config"
	"github.com/nurburg-dev/redis-sample-project/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server is the HTTP gateway in front of the key-value store
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	store      store.Store
	httpServer *http.Server
	registry   *prometheus.Registry
	collectors []collectors.Collector

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// ServerParams is the parameters for the server
type ServerParams struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Store  store.Store
}

// endpoint is one route served by the gateway
type endpoint struct {
	pattern string
	route   string
	handler http.HandlerFunc
}

// New creates a new server
func New(params ServerParams) *Server {
	registry := prometheus.NewRegistry()

	deps := &collectors.CollectorDependencies{
		Store:  params.Store,
		Logger: params.Logger,
		Config: params.Config,
	}

	storeCollector := collectors.NewStoreCollector(deps)
	httpCollector := collectors.NewHTTPCollector()

	registry.MustRegister(storeCollector)
	registry.MustRegister(httpCollector)

	s := &Server{
		config:   params.Config,
		logger:   params.Logger,
		store:    params.Store,
		registry: registry,
		collectors: []collectors.Collector{
			storeCollector,
		},
	}

	mux := http.NewServeMux()
	for _, e := range s.endpoints() {
		mux.Handle(e.pattern, httpCollector.Middleware(e.route, e.handler))
	}

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	s.httpServer = &http.Server{
		Addr:         params.Config.Addr(),
		Handler:      cors.AllowAll().Handler(mux),
		ReadTimeout:  params.Config.Server.ReadTimeout.Duration,
		WriteTimeout: params.Config.Server.WriteTimeout.Duration,
	}

	return s
}

func (s *Server) endpoints() []endpoint {
	return []endpoint{
		{pattern: "GET /api/health", route: "/api/health", handler: s.handleHealth},
		{pattern: "GET /api/{key}", route: "/api/{key}", handler: s.handleGet},
		{pattern: "POST /api", route: "/api", handler: s.handleSet},
	}
}

// Handler returns the root handler, CORS and instrumentation included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Listen binds the listen address without serving
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Start binds the listener, starts metric collection and serves HTTP in
// the background. It returns once the listener is bound.
func (s *Server) Start() error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.startMetricCollection(ctx)
	}()

	s.logger.Info("Starting HTTP server",
		zap.String("addr", addr.String()),
		zap.String("store", s.config.RedactedStoreURL()),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout.Duration),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout.Duration),
	)
	for _, e := range s.endpoints() {
		s.logger.Info("Endpoint available", zap.String("route", e.pattern))
	}
	s.logger.Info("Endpoint available", zap.String("route", "GET /metrics"))

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop drains in-flight requests and stops metric collection
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout.Duration)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)

	s.mu.Lock()
	stop, done := s.cancel, s.done
	s.mu.Unlock()
	if stop != nil {
		stop()
		<-done
	}

	return err
}

// startMetricCollection collects immediately, then on every interval until
// ctx is cancelled.
func (s *Server) startMetricCollection(ctx context.Context) {
	interval := s.config.Metrics.CollectionInterval.Duration
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting metric collection",
		zap.Duration("interval", interval),
		zap.Int("collectors", len(s.collectors)),
	)

	s.collectAllMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping metric collection")
			return
		case <-ticker.C:
			s.collectAllMetrics(ctx)
		}
	}
}

func (s *Server) collectAllMetrics(ctx context.Context) {
	start := time.Now()

	for _, collector := range s.collectors {
		if err := collector.CollectMetrics(ctx); err != nil {
			s.logger.Error("Failed to collect metrics",
				zap.String("collector", collector.Name()),
				zap.Error(err),
			)
		}
	}

	s.logger.Debug("Metric collection completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("collectors", len(s.collectors)),
	)
}
