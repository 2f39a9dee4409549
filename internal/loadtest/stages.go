package loadtest

import (
	"fmt"
	"math"
	"time"
)

// Stage ramps the virtual user count from the previous stage's target to
// Target over Duration.
type Stage struct {
	Duration time.Duration
	Target   int
}

// Schedule is an ordered list of stages. The count starts at zero.
type Schedule []Stage

// Total returns the combined duration of all stages.
func (s Schedule) Total() time.Duration {
	var total time.Duration
	for _, stage := range s {
		total += stage.Duration
	}
	return total
}

// MaxTarget returns the highest target across all stages.
func (s Schedule) MaxTarget() int {
	maxTarget := 0
	for _, stage := range s {
		maxTarget = max(maxTarget, stage.Target)
	}
	return maxTarget
}

// TargetAt returns the number of virtual users that should be active after
// elapsed time, linearly interpolated within the current stage. done is true
// once the schedule has run out.
func (s Schedule) TargetAt(elapsed time.Duration) (target int, done bool) {
	from := 0
	var offset time.Duration

	for _, stage := range s {
		if elapsed < offset+stage.Duration {
			progress := float64(elapsed-offset) / float64(stage.Duration)
			delta := float64(stage.Target-from) * progress
			return from + int(math.Round(delta)), false
		}
		offset += stage.Duration
		from = stage.Target
	}

	return from, true
}

// Validate rejects schedules that cannot be executed.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	for i, stage := range s {
		if stage.Duration < 0 {
			return fmt.Errorf("stage %d: duration must be non-negative", i)
		}
		if stage.Target < 0 {
			return fmt.Errorf("stage %d: target must be non-negative", i)
		}
	}
	if s.Total() <= 0 {
		return fmt.Errorf("schedule must have a positive total duration")
	}
	return nil
}
