package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/nurburg-dev/redis-sample-project/internal/loadtest"
)

// Harness is the load test configuration file
type Harness struct {
	Host           string              `yaml:"host"`
	Stages         []HarnessStage      `yaml:"stages"`
	Thresholds     map[string][]string `yaml:"thresholds"`
	Sleep          Duration            `yaml:"sleep"`
	Seed           int64               `yaml:"seed"`
	RequestTimeout Duration            `yaml:"request_timeout"`
	LatencyCeiling Duration            `yaml:"latency_ceiling"`
	TickInterval   Duration            `yaml:"tick_interval"`
}

// HarnessStage is one (duration, target) pair of the stage schedule
type HarnessStage struct {
	Duration Duration `yaml:"duration"`
	Target   int      `yaml:"target"`
}

// DefaultHarness returns the default traffic profile: ramp to 10 VUs over
// 2m, hold 5m, ramp down over 2m, with p(95)<500ms and an error rate below 10%.
func DefaultHarness() *Harness {
	return &Harness{
		Host: os.Getenv("API_HOST"),
		Stages: []HarnessStage{
			{Duration: Duration{2 * time.Minute}, Target: 10},
			{Duration: Duration{5 * time.Minute}, Target: 10},
			{Duration: Duration{2 * time.Minute}, Target: 0},
		},
		Thresholds: map[string][]string{
			loadtest.MetricHTTPReqDuration: {"p(95)<500"},
			loadtest.MetricErrors:          {"rate<0.1"},
		},
		Sleep:          Duration{time.Second},
		RequestTimeout: Duration{60 * time.Second},
		LatencyCeiling: Duration{500 * time.Millisecond},
		TickInterval:   Duration{100 * time.Millisecond},
	}
}

// LoadHarnessFile reads a YAML harness file. Fields the file leaves out
// keep their defaults; an explicit zero such as "sleep: 0s" is kept.
func LoadHarnessFile(path string) (*Harness, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	defaults := DefaultHarness()

	// Lists and maps replace the defaults instead of merging into them.
	h := *defaults
	h.Stages = nil
	h.Thresholds = nil
	if err := yaml.Unmarshal(bytes, &h); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if h.Stages == nil {
		h.Stages = defaults.Stages
	}
	if h.Thresholds == nil {
		h.Thresholds = defaults.Thresholds
	}

	return &h, nil
}

// Validate checks the harness configuration
func (h *Harness) Validate() error {
	if h.Host == "" {
		return fmt.Errorf("host must be set (flag --host, API_HOST or config file)")
	}
	if len(h.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	if h.Sleep.Duration < 0 {
		return fmt.Errorf("sleep must be non-negative")
	}
	if h.LatencyCeiling.Duration <= 0 {
		return fmt.Errorf("latency_ceiling must be positive")
	}
	return nil
}

// Schedule converts the configured stages into a loadtest.Schedule
func (h *Harness) Schedule() loadtest.Schedule {
	schedule := make(loadtest.Schedule, 0, len(h.Stages))
	for _, s := range h.Stages {
		schedule = append(schedule, loadtest.Stage{Duration: s.Duration.Duration, Target: s.Target})
	}
	return schedule
}

// ToOptions converts the harness configuration into runner options
func (h *Harness) ToOptions() (loadtest.Options, error) {
	opts := loadtest.DefaultOptions()

	schedule := h.Schedule()
	if err := schedule.Validate(); err != nil {
		return opts, fmt.Errorf("invalid stages: %w", err)
	}
	opts.Schedule = schedule

	thresholds, err := loadtest.ParseThresholds(h.Thresholds)
	if err != nil {
		return opts, err
	}
	opts.Thresholds = thresholds

	opts.Sleep = h.Sleep.Duration
	opts.Seed = h.Seed
	if h.TickInterval.Duration > 0 {
		opts.TickInterval = h.TickInterval.Duration
	}

	return opts, nil
}
