// Package ratelimit gates network-bound screener work: every call waits a
// fixed per-worker delay and, optionally, a shared token bucket that caps the
// aggregate request rate.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/batch-screener/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// PerWorkerDelay is slept by the calling worker before each request.
	PerWorkerDelay time.Duration
	// GlobalRPS caps requests across all workers. Zero disables the cap.
	GlobalRPS float64
	// GlobalBurst is the bucket size of the global cap. Defaults to 1.
	GlobalBurst int
}

// Limiter enforces the per-worker delay and the optional global cap.
type Limiter struct {
	delay  time.Duration
	global *rate.Limiter
}

// New creates a new Limiter. Negative delays are treated as zero.
func New(cfg Config) *Limiter {
	l := &Limiter{delay: cfg.PerWorkerDelay}
	if l.delay < 0 {
		l.delay = 0
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = 1
		}
		l.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	return l
}

// Delay reports the configured per-worker delay.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// Wait blocks the caller for the per-worker delay, then for a global token
// when a cap is configured. It returns early when ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if l.delay > 0 {
		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
		metrics.ObserveRateLimitDelay("worker", l.delay)
	}
	if l.global == nil {
		return nil
	}
	start := time.Now()
	if err := l.global.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay("global", waited)
	}
	return nil
}
