package loadtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures a Runner.
type Options struct {
	Schedule   Schedule
	Thresholds []Threshold

	// Sleep is the pause between two iterations of the same VU.
	Sleep time.Duration
	// Seed seeds every VU's random sources.
	Seed int64
	// TickInterval is how often the VU count is adjusted to the schedule.
	TickInterval time.Duration

	Logger *zap.Logger
}

// DefaultOptions mirrors the staged traffic profile: ramp to 10 VUs over two
// minutes, hold for five, ramp down over two.
func DefaultOptions() Options {
	return Options{
		Schedule: Schedule{
			{Duration: 2 * time.Minute, Target: 10},
			{Duration: 5 * time.Minute, Target: 10},
			{Duration: 2 * time.Minute, Target: 0},
		},
		Sleep:        time.Second,
		TickInterval: 100 * time.Millisecond,
		Logger:       zap.NewNop(),
	}
}

// Result summarises a finished run.
type Result struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Metrics    []Metric
	Checks     []CheckResult
	Thresholds []ThresholdResult
}

// Passed reports whether every threshold held.
func (r *Result) Passed() bool {
	for _, t := range r.Thresholds {
		if !t.Passed {
			return false
		}
	}
	return true
}

// Err returns a *ThresholdError when at least one threshold failed.
func (r *Result) Err() error {
	var failed []ThresholdResult
	for _, t := range r.Thresholds {
		if !t.Passed {
			failed = append(failed, t)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &ThresholdError{Failed: failed}
}

// Runner drives virtual users through a staged schedule.
type Runner struct {
	opts     Options
	scenario Scenario
	metrics  *Registry

	vus        *Gauge
	vusMax     *Gauge
	iterations *Counter
	iterTime   *Trend

	mu      sync.Mutex
	running bool
}

type vuHandle struct {
	vu   *VU
	stop chan struct{}
}

// New creates a runner for scenario. Metrics are recorded in registry.
func New(opts Options, scenario Scenario, registry *Registry) *Runner {
	defaults := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaults.TickInterval
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}

	return &Runner{
		opts:       opts,
		scenario:   scenario,
		metrics:    registry,
		vus:        registry.Gauge(MetricVUs),
		vusMax:     registry.Gauge(MetricVUsMax),
		iterations: registry.Counter(MetricIterations),
		iterTime:   registry.Trend(MetricIterationDuration),
	}
}

// Run executes the schedule. Cancelling ctx ends the schedule early; VUs
// still finish the iteration they are in. The returned error covers
// configuration and setup failures only; threshold failures are reported
// through Result.Err.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("run is already in progress")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if err := r.opts.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	for _, t := range r.opts.Thresholds {
		if err := t.validate(r.metrics); err != nil {
			return nil, err
		}
	}

	// Iterations must not be interrupted by run cancellation.
	iterCtx := context.WithoutCancel(ctx)

	result := &Result{RunID: uuid.NewString()}
	log := r.opts.Logger.With(zap.String("run_id", result.RunID))

	if err := r.scenario.Setup(iterCtx); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	log.Info("Run started",
		zap.Int("stages", len(r.opts.Schedule)),
		zap.Duration("duration", r.opts.Schedule.Total()),
		zap.Int("max_vus", r.opts.Schedule.MaxTarget()),
	)

	result.StartTime = time.Now()
	r.drive(ctx, iterCtx, log, result.StartTime)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	r.scenario.Teardown(iterCtx)

	result.Metrics = r.metrics.All()
	result.Checks = r.metrics.Checks()
	result.Thresholds = EvaluateThresholds(r.metrics, r.opts.Thresholds)

	log.Info("Run completed",
		zap.Duration("elapsed", result.Duration),
		zap.Float64("iterations", r.iterations.Count()),
		zap.Bool("passed", result.Passed()),
	)

	return result, nil
}

// drive adjusts the active VU set to the schedule until it runs out or ctx
// is cancelled, then retires every VU and waits for them to drain.
func (r *Runner) drive(ctx, iterCtx context.Context, log *zap.Logger, start time.Time) {
	var (
		wg     sync.WaitGroup
		active []*vuHandle
		nextID int
		peak   int
	)

	ticker := time.NewTicker(r.opts.TickInterval)
	defer ticker.Stop()

	for {
		target, done := r.opts.Schedule.TargetAt(time.Since(start))
		if ctx.Err() != nil {
			target, done = 0, true
		}

		for len(active) < target {
			nextID++
			h := &vuHandle{vu: NewVU(nextID, r.opts.Seed), stop: make(chan struct{})}
			active = append(active, h)

			wg.Add(1)
			go r.runVU(iterCtx, log, h, &wg)
		}
		for len(active) > target {
			last := active[len(active)-1]
			close(last.stop)
			active = active[:len(active)-1]
		}

		if len(active) > peak {
			peak = len(active)
			r.vusMax.Set(float64(peak))
		}
		r.vus.Set(float64(len(active)))

		if done {
			break
		}

		select {
		case <-ctx.Done():
			log.Info("Run interrupted, draining virtual users", zap.Int("vus", len(active)))
		case <-ticker.C:
		}
	}

	for _, h := range active {
		close(h.stop)
	}
	wg.Wait()
	r.vus.Set(0)
}

func (r *Runner) runVU(ctx context.Context, log *zap.Logger, h *vuHandle, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		r.iterate(ctx, log, h.vu)

		if r.opts.Sleep <= 0 {
			continue
		}
		timer := time.NewTimer(r.opts.Sleep)
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Runner) iterate(ctx context.Context, log *zap.Logger, vu *VU) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error("Iteration panicked",
				zap.Int("vu", vu.ID),
				zap.Int("iteration", vu.Iteration),
				zap.Any("panic", p),
			)
		}
		vu.Iteration++
		r.iterations.Add(1, nil)
		r.iterTime.AddDuration(time.Since(start), nil)
	}()

	r.scenario.Iteration(ctx, vu)
}
