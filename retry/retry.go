// Package retry provides a bounded exponential-backoff retry primitive.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs action up to attempts times, doubling the delay between attempts
// starting from baseDelay. It returns nil on the first success, the context
// error if cancelled while waiting, and the last action error wrapped with
// the attempt count once the budget is exhausted.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, action func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		if err := action(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
