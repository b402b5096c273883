package orchestrator

import (
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/metrics"
)

type delayer interface {
	Delay() time.Duration
}

// Estimate returns the lower bound on wall-clock time for n items spread over
// workers that each pause delay before every item.
func Estimate(n, workers int, delay time.Duration) time.Duration {
	if n <= 0 || workers <= 0 {
		return 0
	}
	return time.Duration(n) * delay / time.Duration(workers)
}

func (e *Engine) logBanner(logger *zap.Logger, total int) {
	fields := []zap.Field{
		zap.Int("tickers", total),
		zap.Int("workers", e.cfg.Workers),
		zap.Int("checkpoint_cadence", e.cfg.CheckpointCadence),
		zap.Bool("resume", e.cfg.Resume),
		zap.String("baseline", string(e.cfg.BaselineTicker)),
	}
	if d, ok := e.deps.Limiter.(delayer); ok {
		delay := d.Delay()
		fields = append(fields,
			zap.Duration("per_worker_delay", delay),
			zap.Duration("estimated_min_duration", Estimate(total, e.cfg.Workers, delay)),
		)
		if delay > 0 {
			fields = append(fields, zap.Float64("effective_rps", float64(e.cfg.Workers)/delay.Seconds()))
		}
	}
	logger.Info("starting screening run", fields...)
}

func (e *Engine) logProgress(logger *zap.Logger, start time.Time, done, total int, tracker *metrics.Tracker) {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.Int("done", done),
		zap.Int("of", total),
		zap.Duration("elapsed", elapsed),
		zap.Float64("error_pct", tracker.ErrorRatio()*100),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		rate := float64(done) / secs
		fields = append(fields, zap.Float64("items_per_sec", rate))
		if rate > 0 {
			left := float64(total-done) / rate
			fields = append(fields, zap.Duration("eta", time.Duration(left*float64(time.Second))))
		}
	}
	logger.Info("progress", fields...)
}
