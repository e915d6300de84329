package triage

import (
	"sync"
	"time"
)

// failureKey identifies a stream of related dead letters. Identifier is the
// task name, so repeated failures of the same task with the same error type
// count toward one threshold.
type failureKey struct {
	ErrorType  string
	Identifier string
}

// failureWindow counts dead-letter occurrences per failure key inside a
// sliding time window.
type failureWindow struct {
	mu       sync.Mutex
	span     time.Duration
	failures map[failureKey][]time.Time
	now      func() time.Time
}

func newFailureWindow(span time.Duration) *failureWindow {
	return &failureWindow{
		span:     span,
		failures: make(map[failureKey][]time.Time),
		now:      time.Now,
	}
}

// Record adds an occurrence for the key, drops entries older than the
// window span, and reports whether the count now meets threshold.
func (w *failureWindow) Record(key failureKey, threshold int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.span)

	recent := make([]time.Time, 0, len(w.failures[key])+1)
	for _, ts := range w.failures[key] {
		if !ts.Before(cutoff) {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	w.failures[key] = recent

	return len(recent) >= threshold
}
