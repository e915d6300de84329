package task

import (
	"math"
	"time"
)

// BackoffDelay computes the pause before a retry re-enqueue:
// min(base^attempt, max) seconds, where attempt is the retry count after
// increment. Growth is exponential without jitter.
func BackoffDelay(base float64, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 || base <= 0 || max <= 0 {
		return 0
	}

	seconds := math.Pow(base, float64(attempt))
	delay := time.Duration(seconds * float64(time.Second))

	// Pow overflows time.Duration for large attempts; the cap absorbs that.
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
