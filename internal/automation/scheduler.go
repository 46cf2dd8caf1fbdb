package automation

import (
	"context"
	"time"
)

// StepScheduler is called by the engine before each step. It decides when
// the step may run; returning an error fails that step.
type StepScheduler interface {
	Wait(ctx context.Context, step RoutineStep) error
}

// NoopScheduler runs every step immediately; delaySeconds is recorded but
// not enforced.
type NoopScheduler struct{}

// Wait implements StepScheduler.
func (NoopScheduler) Wait(context.Context, RoutineStep) error { return nil }

// SleepScheduler blocks the run for the step's delaySeconds.
//
// The run holds its goroutine for the whole delay and a process restart
// loses the remainder of the run. Durable continuation would need a job
// queue with an exactly-once resume contract, which does not exist yet.
type SleepScheduler struct {
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
}

// Wait implements StepScheduler.
func (s SleepScheduler) Wait(ctx context.Context, step RoutineStep) error {
	if step.DelaySeconds == nil || *step.DelaySeconds <= 0 {
		return nil
	}

	d := time.Duration(*step.DelaySeconds) * time.Second
	if s.MaxDelay > 0 && d > s.MaxDelay {
		d = s.MaxDelay
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
