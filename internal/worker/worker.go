// Package worker implements the per-item screening pipeline and the loop that
// feeds it from the work queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/metrics"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/telemetry"
)

// Queue is the consumer side of the work queue.
type Queue interface {
	Dequeue(ctx context.Context) (screener.WorkItem, error)
}

// Config controls Worker behavior.
type Config struct {
	Window     screener.Window
	Thresholds screener.Thresholds
	// EnrichPhases lists the phases whose results are enriched.
	EnrichPhases []int
}

// Completion reports the outcome of one attempted item. Result is nil when
// the item produced nothing or failed; Err is set only on failure.
type Completion struct {
	Item     screener.WorkItem
	Result   *screener.Result
	Err      error
	Duration time.Duration
}

// Worker consumes queue items and executes the screening pipeline.
type Worker struct {
	queue    Queue
	fetcher  screener.Fetcher
	analyzer screener.Analyzer
	enricher screener.Enricher
	limiter  screener.Limiter
	tracker  *metrics.Tracker
	baseline screener.Series
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. The baseline is shared read-only across workers.
// A nil enricher disables enrichment.
func New(
	queue Queue,
	fetcher screener.Fetcher,
	analyzer screener.Analyzer,
	enricher screener.Enricher,
	limiter screener.Limiter,
	tracker *metrics.Tracker,
	baseline screener.Series,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window == (screener.Window{}) {
		cfg.Window = screener.DefaultWindow
	}
	return &Worker{
		queue:    queue,
		fetcher:  fetcher,
		analyzer: analyzer,
		enricher: enricher,
		limiter:  limiter,
		tracker:  tracker,
		baseline: baseline,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run consumes items until the queue is closed and drained or ctx finishes,
// sending one Completion per attempted item. The consumer must keep reading
// out until every worker has returned.
func (w *Worker) Run(ctx context.Context, out chan<- Completion) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Debug("queue drained", zap.Error(err))
			}
			return
		}
		completion, ok := w.Process(ctx, item)
		if !ok {
			w.logger.Debug("item abandoned", zap.String("ticker", string(item)))
			continue
		}
		out <- completion
	}
}

// Process runs one item through limiter, fetcher, analyzer and enricher. It
// reports false when cancellation abandoned the item before it completed.
func (w *Worker) Process(ctx context.Context, item screener.WorkItem) (Completion, bool) {
	if err := w.limiter.Wait(ctx); err != nil {
		return Completion{}, false
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := telemetry.Tracer().Start(ctx, "screener.process",
		trace.WithAttributes(attribute.String("ticker", string(item))))
	defer span.End()

	start := time.Now()
	series, err := w.fetcher.FetchSeries(ctx, item, w.cfg.Window)
	metrics.ObserveFetch(time.Since(start))
	if err != nil && ctx.Err() != nil {
		return Completion{}, false
	}
	// Abandoned items are not attempts; they rerun on resume.
	w.tracker.RecordAttempt()
	if err != nil {
		w.tracker.RecordError()
		metrics.ObserveItem(metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		w.logger.Warn("fetch failed", zap.String("ticker", string(item)), zap.Error(err))
		return Completion{
			Item:     item,
			Err:      fmt.Errorf("%w: %w", screener.ErrItemFetch, err),
			Duration: time.Since(start),
		}, true
	}
	if len(series) == 0 {
		metrics.ObserveItem(metrics.OutcomeEmpty)
		w.logger.Debug("no data", zap.String("ticker", string(item)))
		return Completion{Item: item, Duration: time.Since(start)}, true
	}

	result, err := w.analyzer.Analyze(item, series, w.baseline, w.cfg.Thresholds)
	if err != nil {
		w.tracker.RecordError()
		metrics.ObserveItem(metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		w.logger.Warn("analysis failed", zap.String("ticker", string(item)), zap.Error(err))
		return Completion{
			Item:     item,
			Err:      fmt.Errorf("%w: %w", screener.ErrItemAnalysis, err),
			Duration: time.Since(start),
		}, true
	}
	if result == nil {
		metrics.ObserveItem(metrics.OutcomeEmpty)
		return Completion{Item: item, Duration: time.Since(start)}, true
	}

	result = w.enrich(ctx, result)
	metrics.ObserveItem(metrics.OutcomeResult)
	span.SetAttributes(attribute.Int("phase", result.Phase))
	w.logger.Debug("result found", zap.String("ticker", string(item)), zap.Int("phase", result.Phase))
	return Completion{Item: item, Result: result, Duration: time.Since(start)}, true
}

// enrich attaches fundamentals to results in the configured phases. Failures
// keep the original result.
func (w *Worker) enrich(ctx context.Context, result *screener.Result) *screener.Result {
	if w.enricher == nil || !slices.Contains(w.cfg.EnrichPhases, result.Phase) {
		return result
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return result
	}
	data, err := w.enricher.Enrich(ctx, result.Ticker)
	if err != nil {
		w.logger.Warn("enrichment failed", zap.String("ticker", string(result.Ticker)), zap.Error(err))
		return result
	}
	payload, err := mergePayload(result.Payload, "fundamentals", data)
	if err != nil {
		w.logger.Warn("enrichment merge failed", zap.String("ticker", string(result.Ticker)), zap.Error(err))
		return result
	}
	return &screener.Result{Ticker: result.Ticker, Phase: result.Phase, Payload: payload}
}

func mergePayload(base json.RawMessage, key string, value json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	fields[key] = value
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}
