// Package poll provides bounded condition polling for readiness checks.
// 轮询等待：按固定节奏评估条件，直到成功、出错或超时。
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned when the condition did not hold before the deadline.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Condition reports whether the awaited state has been reached. Returning a
// non-nil error aborts the poll immediately.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates fn at the given interval until it returns true, it returns
// an error, or timeout elapses. The pacing limiter honors context
// cancellation, so callers never sleep past a cancelled context.
func Until(ctx context.Context, interval, timeout time.Duration, fn Condition) error {
	if interval <= 0 {
		return fmt.Errorf("poll: interval must be positive, got %s", interval)
	}
	if timeout <= 0 {
		return fmt.Errorf("poll: timeout must be positive, got %s", timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Burst 1 with the first token available immediately: the condition is
	// checked once before any waiting.
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	start := time.Now()

	for {
		ok, err := fn(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
			}
			return err
		}
	}
}
