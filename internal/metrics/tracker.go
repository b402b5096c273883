package metrics

import "sync/atomic"

// Tracker counts attempts and errors for a single run. It is safe for
// concurrent use by all workers.
type Tracker struct {
	attempts atomic.Int64
	errors   atomic.Int64
}

// NewTracker returns a zeroed Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordAttempt counts one item attempt.
func (t *Tracker) RecordAttempt() {
	t.attempts.Add(1)
}

// RecordError counts one failed item. Callers record the attempt first.
func (t *Tracker) RecordError() {
	t.errors.Add(1)
}

// Attempts returns the number of recorded attempts.
func (t *Tracker) Attempts() int64 {
	return t.attempts.Load()
}

// Errors returns the number of recorded errors.
func (t *Tracker) Errors() int64 {
	return t.errors.Load()
}

// ErrorRatio returns errors / max(attempts, 1), clamped to [0, 1].
func (t *Tracker) ErrorRatio() float64 {
	// Errors are loaded before attempts so a concurrent RecordAttempt can
	// only lower the observed ratio.
	errs := t.errors.Load()
	attempts := t.attempts.Load()
	if attempts <= 0 {
		return 0
	}
	ratio := float64(errs) / float64(attempts)
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
