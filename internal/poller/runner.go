// internal/poller/runner.go
package poller

import (
	"context"
	"errors"
	"time"
)

// Run starts the timer loop and emits PollResult on the provided channel.
// One goroutine per device. No overlap. No retries beyond the schedule.
// The first cycle runs immediately. Run returns when ctx ends or the device
// fails initialization for good.
func (c *Coordinator) Run(ctx context.Context, out chan<- PollResult) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.resched:
			timer.Reset(c.Interval())
			continue
		case <-c.refresh:
		case <-timer.C:
		}

		res := c.PollOnce(ctx)

		select {
		case out <- res:
		case <-ctx.Done():
			return
		}

		if errors.Is(res.Err, ErrDeviceInit) {
			return
		}

		timer.Reset(c.Interval())
	}
}
