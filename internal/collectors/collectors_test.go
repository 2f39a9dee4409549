package collectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nurburg-dev/redis-sample-project/internal/config"
	"github.com/nurburg-dev/redis-sample-project/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func TestStoreCollector(t *testing.T) {
	mem := store.NewMemory()
	deps := &CollectorDependencies{
		Store:  mem,
		Logger: zaptest.NewLogger(t),
		Config: config.New(),
	}
	c := NewStoreCollector(deps)

	if c.Name() != "store" {
		t.Errorf("expected name 'store', got '%s'", c.Name())
	}

	if err := c.CollectMetrics(context.Background()); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if got := testutil.ToFloat64(c.storeUp); got != 1 {
		t.Errorf("expected store up 1, got %f", got)
	}
	if got := testutil.ToFloat64(c.pingFailures); got != 0 {
		t.Errorf("expected no failures, got %f", got)
	}

	_ = mem.Close()
	if err := c.CollectMetrics(context.Background()); err != nil {
		t.Fatalf("collect should record, not return, probe failures: %v", err)
	}
	if got := testutil.ToFloat64(c.storeUp); got != 0 {
		t.Errorf("expected store up 0, got %f", got)
	}
	if got := testutil.ToFloat64(c.pingFailures); got != 1 {
		t.Errorf("expected 1 failure, got %f", got)
	}
}

func TestStoreCollectorRegisters(t *testing.T) {
	deps := &CollectorDependencies{
		Store:  store.NewMemory(),
		Logger: zaptest.NewLogger(t),
		Config: config.New(),
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewStoreCollector(deps))

	count, err := testutil.GatherAndCount(registry)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 metrics, got %d", count)
	}
}

func TestHTTPCollectorMiddleware(t *testing.T) {
	c := NewHTTPCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	created := c.Middleware("/api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	implicit := c.Middleware("/api/{key}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	for i := 0; i < 2; i++ {
		created.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api", nil))
	}
	rec := httptest.NewRecorder()
	implicit.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/k", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("expected body to pass through, got %q", rec.Body.String())
	}

	expected := `
# HELP gateway_http_requests_total HTTP requests handled by the gateway
# TYPE gateway_http_requests_total counter
gateway_http_requests_total{code="200",method="GET",route="/api/{key}"} 1
gateway_http_requests_total{code="201",method="POST",route="/api"} 2
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "gateway_http_requests_total"); err != nil {
		t.Error(err)
	}

	if got := testutil.CollectAndCount(c.duration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}
