package loadtest

import (
	"context"
	"math/rand"
	"net/url"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// MetricErrors is the custom error rate fed by the health check.
const MetricErrors = "errors"

// VU is one virtual user. Its random sources are private to the VU and
// seeded deterministically from the run seed.
type VU struct {
	ID        int
	Iteration int
	Rand      *rand.Rand
	Faker     *gofakeit.Faker
}

// NewVU creates a virtual user whose random sources derive from seed and id.
func NewVU(id int, seed int64) *VU {
	s := seed + int64(id)
	return &VU{
		ID:    id,
		Rand:  rand.New(rand.NewSource(s)),
		Faker: gofakeit.New(uint64(s)),
	}
}

// Scenario is executed by every virtual user.
type Scenario interface {
	// Setup runs once before the first iteration.
	Setup(ctx context.Context) error
	// Iteration runs one pass of the scenario for vu.
	Iteration(ctx context.Context, vu *VU)
	// Teardown runs once after the last iteration.
	Teardown(ctx context.Context)
}

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Token returns a random lowercase base36 token of length n.
func Token(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenAlphabet[r.Intn(len(tokenAlphabet))]
	}
	return string(b)
}

type setRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GatewayScenario checks gateway health and then runs one write/read cycle
// against a fresh random key.
type GatewayScenario struct {
	host           string
	client         *Client
	metrics        *Registry
	logger         *zap.Logger
	latencyCeiling time.Duration
	errors         *Rate
}

// NewGatewayScenario creates the gateway scenario. latencyCeiling bounds the
// health check response time.
func NewGatewayScenario(host string, client *Client, metrics *Registry, logger *zap.Logger, latencyCeiling time.Duration) *GatewayScenario {
	return &GatewayScenario{
		host:           host,
		client:         client,
		metrics:        metrics,
		logger:         logger,
		latencyCeiling: latencyCeiling,
		errors:         metrics.Rate(MetricErrors),
	}
}

func (s *GatewayScenario) Setup(ctx context.Context) error {
	s.logger.Info("Starting Redis load test", zap.String("host", s.host))
	return nil
}

func (s *GatewayScenario) Teardown(ctx context.Context) {
	s.logger.Info("Redis load test completed", zap.String("host", s.host))
}

func (s *GatewayScenario) Iteration(ctx context.Context, vu *VU) {
	health := s.client.Get(ctx, "health", "/api/health")

	ok := s.metrics.Check("status is 200", health.Status == 200)
	ok = s.metrics.Check("response time < "+s.latencyCeiling.String(),
		health.Err == nil && health.Duration < s.latencyCeiling) && ok
	s.errors.Add(!ok)

	if health.Status != 200 {
		return
	}

	key := "test:" + Token(vu.Rand, 8)
	value := vu.Faker.Name()

	set := s.client.PostJSON(ctx, "set", "/api", setRequest{Key: key, Value: value})
	s.metrics.Check("set operation successful", set.Status == 201)
	if set.Status != 201 {
		s.logger.Debug("Set failed",
			zap.Int("vu", vu.ID),
			zap.String("key", key),
			zap.Int("status", set.Status),
			zap.Error(set.Err),
		)
		return
	}

	get := s.client.Get(ctx, "get", "/api/"+url.PathEscape(key))
	s.metrics.Check("get operation successful", get.Status == 200)
	s.metrics.Check("value matches", get.Status == 200 && gjson.GetBytes(get.Body, "value").String() == value)
}
