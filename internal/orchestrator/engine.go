package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/dispatcher"
	"github.com/JakeFAU/batch-screener/internal/metrics"
	"github.com/JakeFAU/batch-screener/internal/progress"
	"github.com/JakeFAU/batch-screener/internal/queue/memory"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/telemetry"
	"github.com/JakeFAU/batch-screener/internal/worker"
)

var (
	// ErrDuplicateWorkItem rejects a universe that lists a ticker twice.
	ErrDuplicateWorkItem = errors.New("duplicate work item in universe")
	// ErrRunInProgress is returned when Run or Clear overlaps an active run.
	ErrRunInProgress = errors.New("run already in progress")
)

const (
	defaultWorkers          = 5
	defaultCadence          = 100
	defaultProgressLogEvery = 50
	publishTimeout          = 10 * time.Second
)

// Config controls a screening run.
type Config struct {
	Workers           int
	CheckpointCadence int
	Resume            bool
	BaselineTicker    screener.WorkItem
	Window            screener.Window
	Thresholds        screener.Thresholds
	EnrichPhases      []int
	ProgressLogEvery  int
	// PublishTopic enables summary publishing when set.
	PublishTopic string
}

// Checkpointer persists run progress.
type Checkpointer interface {
	Load(ctx context.Context) (*screener.Checkpoint, bool)
	Save(ctx context.Context, cp screener.Checkpoint) error
	Clear(ctx context.Context) error
}

// Deps are the collaborators of an Engine. Enricher, Publisher and Emitter
// are optional.
type Deps struct {
	Fetcher   screener.Fetcher
	Analyzer  screener.Analyzer
	Enricher  screener.Enricher
	Limiter   screener.Limiter
	Store     Checkpointer
	Publisher screener.Publisher
	Emitter   progress.Emitter
	Clock     screener.Clock
	IDs       screener.IDGenerator
	Logger    *zap.Logger
}

// Engine runs screening batches. Run calls must not overlap.
type Engine struct {
	cfg  Config
	deps Deps

	logger  *zap.Logger
	running atomic.Bool

	mu           sync.RWMutex
	state        State
	runID        string
	startedAt    time.Time
	total        int
	tracker      *metrics.Tracker
	processed    []screener.WorkItem
	processedSet map[screener.WorkItem]struct{}
	results      []screener.Result
}

// New validates cfg and deps and returns an idle Engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Analyzer == nil:
		return nil, errors.New("analyzer is required")
	case deps.Limiter == nil:
		return nil, errors.New("limiter is required")
	case deps.Store == nil:
		return nil, errors.New("checkpoint store is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.CheckpointCadence <= 0 {
		cfg.CheckpointCadence = defaultCadence
	}
	if cfg.ProgressLogEvery <= 0 {
		cfg.ProgressLogEvery = defaultProgressLogEvery
	}
	if cfg.BaselineTicker == "" {
		cfg.BaselineTicker = "SPY"
	}
	if cfg.Window == (screener.Window{}) {
		cfg.Window = screener.DefaultWindow
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:          cfg,
		deps:         deps,
		logger:       logger,
		state:        StateIdle,
		tracker:      metrics.NewTracker(),
		processedSet: make(map[screener.WorkItem]struct{}),
	}, nil
}

// Run screens universe and returns the run summary. The baseline must be
// available or Run fails with screener.ErrBaselineUnavailable before any
// checkpoint I/O. On cancellation the final checkpoint is still written and
// the summary is returned together with the context error.
func (e *Engine) Run(ctx context.Context, universe []screener.WorkItem) (Summary, error) {
	if err := checkUnique(universe); err != nil {
		return Summary{State: StateInit}, err
	}
	if !e.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer e.running.Store(false)

	runID, err := e.deps.IDs.NewID()
	if err != nil {
		return Summary{State: StateInit}, fmt.Errorf("generate run id: %w", err)
	}
	ctx, span := telemetry.Tracer().Start(ctx, "screener.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("tickers", len(universe)),
	))
	defer span.End()

	start := time.Now()
	tracker := metrics.NewTracker()
	e.reset(runID, len(universe), tracker)
	logger := e.logger.With(zap.String("run_id", runID))
	e.logBanner(logger, len(universe))

	baseline, err := e.acquireBaseline(ctx)
	if err != nil {
		e.setState(StateBaselineFailed)
		metrics.ObserveBaselineFailure()
		logger.Error("baseline unavailable, aborting run",
			zap.String("baseline", string(e.cfg.BaselineTicker)),
			zap.Error(err),
		)
		e.emit(progress.Event{RunID: runID, Stage: progress.StageRunError, Dur: time.Since(start), Note: err.Error()})
		span.RecordError(err)
		span.SetStatus(codes.Error, "baseline unavailable")
		return Summary{RunID: runID, State: StateBaselineFailed, TotalTickers: len(universe)}, err
	}
	e.setState(StateBaselineReady)
	logger.Info("baseline ready", zap.Int("bars", len(baseline)))

	e.setState(StateResuming)
	if e.cfg.Resume {
		runID = e.restore(ctx, logger, universe)
		logger = e.logger.With(zap.String("run_id", runID))
		span.SetAttributes(attribute.String("run_id", runID))
	}
	remaining := e.remaining(universe)
	restored := len(universe) - len(remaining)
	logger.Info("work planned",
		zap.Int("universe", len(universe)),
		zap.Int("restored", restored),
		zap.Int("remaining", len(remaining)),
	)

	e.setState(StateRunning)
	e.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart, Processed: restored, Total: len(universe)})

	saves := &saveCounter{}
	completed := 0
	if len(remaining) > 0 {
		for c := range e.startPool(baseline, tracker, logger).Run(ctx, remaining) {
			completed++
			e.record(c)
			e.emitCompletion(runID, c, len(universe))
			if completed == 1 || completed%e.cfg.ProgressLogEvery == 0 {
				e.logProgress(logger, start, completed, len(remaining), tracker)
			}
			if completed%e.cfg.CheckpointCadence == 0 {
				e.save(ctx, runID, saves)
			}
		}
	}

	e.setState(StateFinalizing)
	e.save(ctx, runID, saves)

	summary := e.summarize(start, completed, tracker, saves)
	summary.Interrupted = ctx.Err() != nil
	e.setState(StateDone)
	summary.State = StateDone
	span.SetAttributes(
		attribute.Int("restored", restored),
		attribute.Int("results_found", summary.ResultsFound),
		attribute.Bool("interrupted", summary.Interrupted),
	)

	logger.Info("run finished",
		zap.Duration("elapsed", summary.Elapsed),
		zap.Int("tickers_processed", summary.TickersProcessed),
		zap.Int("total_processed", summary.TotalProcessed),
		zap.Int("results", summary.ResultsFound),
		zap.Float64("throughput", summary.Throughput),
		zap.Float64("error_ratio", summary.ErrorRatio),
		zap.Any("phase_counts", summary.PhaseCounts),
		zap.Bool("interrupted", summary.Interrupted),
	)
	e.publish(ctx, logger, summary)
	e.emit(progress.Event{
		RunID:     runID,
		Stage:     progress.StageRunDone,
		Processed: summary.TotalProcessed,
		Total:     len(universe),
		Dur:       summary.Elapsed,
	})

	if summary.Interrupted {
		return summary, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return summary, nil
}

// Snapshot returns the live status of the current or last run.
func (e *Engine) Snapshot() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		RunID:      e.runID,
		State:      e.state,
		Total:      e.total,
		Processed:  len(e.processed),
		Results:    len(e.results),
		Attempts:   e.tracker.Attempts(),
		Errors:     e.tracker.Errors(),
		ErrorRatio: e.tracker.ErrorRatio(),
		StartedAt:  e.startedAt,
	}
}

// Clear deletes the persisted checkpoint and forgets in-memory progress so
// the next run starts from scratch.
func (e *Engine) Clear(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer e.running.Store(false)

	if err := e.deps.Store.Clear(ctx); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	e.mu.Lock()
	e.processed = nil
	e.processedSet = make(map[screener.WorkItem]struct{})
	e.results = nil
	e.state = StateIdle
	e.mu.Unlock()
	e.logger.Info("progress cleared")
	return nil
}

func (e *Engine) acquireBaseline(ctx context.Context) (screener.Series, error) {
	series, err := e.deps.Fetcher.FetchSeries(ctx, e.cfg.BaselineTicker, e.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", screener.ErrBaselineUnavailable, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data", screener.ErrBaselineUnavailable, e.cfg.BaselineTicker)
	}
	return series, nil
}

// restore loads the checkpoint and seeds processed/results with the entries
// that belong to universe. It returns the run ID to continue under.
func (e *Engine) restore(ctx context.Context, logger *zap.Logger, universe []screener.WorkItem) string {
	e.mu.RLock()
	runID := e.runID
	e.mu.RUnlock()

	cp, ok := e.deps.Store.Load(ctx)
	if !ok {
		return runID
	}
	members := make(map[screener.WorkItem]struct{}, len(universe))
	for _, item := range universe {
		members[item] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	dropped := 0
	for _, item := range cp.Processed {
		if _, ok := members[item]; !ok {
			dropped++
			continue
		}
		if _, dup := e.processedSet[item]; dup {
			continue
		}
		e.processedSet[item] = struct{}{}
		e.processed = append(e.processed, item)
	}
	for _, r := range cp.Clone().Results {
		if _, ok := e.processedSet[r.Ticker]; ok {
			e.results = append(e.results, r)
		}
	}
	if cp.RunID != "" {
		e.runID = cp.RunID
	}
	fields := []zap.Field{
		zap.String("resumed_run_id", e.runID),
		zap.Int("processed", len(e.processed)),
		zap.Int("results", len(e.results)),
		zap.Int("dropped_outside_universe", dropped),
	}
	if aged, ok := e.deps.Clock.(interface{ Since(time.Time) time.Duration }); ok && !cp.Timestamp.IsZero() {
		fields = append(fields, zap.Duration("checkpoint_age", aged.Since(cp.Timestamp)))
	}
	logger.Info("resuming from checkpoint", fields...)
	return e.runID
}

// remaining returns universe minus the processed set, in universe order.
func (e *Engine) remaining(universe []screener.WorkItem) []screener.WorkItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]screener.WorkItem, 0, len(universe)-len(e.processed))
	for _, item := range universe {
		if _, done := e.processedSet[item]; !done {
			out = append(out, item)
		}
	}
	return out
}

func (e *Engine) startPool(
	baseline screener.Series,
	tracker *metrics.Tracker,
	logger *zap.Logger,
) *dispatcher.Dispatcher {
	queue := memory.NewQueue(e.cfg.Workers * 2)
	wcfg := worker.Config{
		Window:       e.cfg.Window,
		Thresholds:   e.cfg.Thresholds,
		EnrichPhases: e.cfg.EnrichPhases,
	}
	workers := make([]*worker.Worker, 0, e.cfg.Workers)
	for i := 0; i < e.cfg.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			e.deps.Fetcher,
			e.deps.Analyzer,
			e.deps.Enricher,
			e.deps.Limiter,
			tracker,
			baseline,
			wcfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(queue, workers, logger.Named("dispatcher"))
}

// record folds a completion into the processed set and results.
func (e *Engine) record(c worker.Completion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.processedSet[c.Item]; dup {
		return
	}
	e.processedSet[c.Item] = struct{}{}
	e.processed = append(e.processed, c.Item)
	if c.Result != nil {
		e.results = append(e.results, *c.Result)
	}
}

func (e *Engine) checkpoint(runID string) screener.Checkpoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := screener.Checkpoint{
		RunID:        runID,
		Timestamp:    e.deps.Clock.Now(),
		TotalTickers: e.total,
		Processed:    e.processed,
		Results:      e.results,
		BatchSize:    e.cfg.CheckpointCadence,
		ErrorRate:    e.tracker.ErrorRatio(),
		Attempts:     e.tracker.Attempts(),
		Errors:       e.tracker.Errors(),
	}
	return cp.Clone()
}

type saveCounter struct {
	ok     int
	failed int
}

// save persists the current progress. Failures are counted, never fatal, and
// saves proceed after cancellation so interrupted work is kept.
func (e *Engine) save(ctx context.Context, runID string, saves *saveCounter) {
	cp := e.checkpoint(runID)
	err := e.deps.Store.Save(context.WithoutCancel(ctx), cp)
	outcome := progress.OutcomeOK
	if err != nil {
		saves.failed++
		outcome = progress.OutcomeError
	} else {
		saves.ok++
	}
	evt := progress.Event{
		RunID:     runID,
		Stage:     progress.StageCheckpoint,
		Outcome:   outcome,
		Processed: len(cp.Processed),
		Total:     cp.TotalTickers,
	}
	if err != nil {
		evt.Note = err.Error()
	}
	e.emit(evt)
}

func (e *Engine) summarize(start time.Time, completed int, tracker *metrics.Tracker, saves *saveCounter) Summary {
	elapsed := time.Since(start)
	e.mu.RLock()
	defer e.mu.RUnlock()

	phases := make(map[int]int)
	results := make([]screener.Result, len(e.results))
	for i, r := range e.results {
		phases[r.Phase]++
		results[i] = r
	}
	var throughput float64
	if secs := elapsed.Seconds(); secs > 0 {
		throughput = float64(tracker.Attempts()) / secs
	}
	return Summary{
		RunID:              e.runID,
		Elapsed:            elapsed,
		TotalTickers:       e.total,
		TickersProcessed:   completed,
		TotalProcessed:     len(e.processed),
		ResultsFound:       len(e.results),
		Throughput:         throughput,
		ErrorRatio:         tracker.ErrorRatio(),
		Attempts:           tracker.Attempts(),
		Errors:             tracker.Errors(),
		PhaseCounts:        phases,
		CheckpointSaves:    saves.ok,
		CheckpointFailures: saves.failed,
		Results:            results,
	}
}

func (e *Engine) publish(ctx context.Context, logger *zap.Logger, summary Summary) {
	if e.cfg.PublishTopic == "" || e.deps.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	payload := summary
	payload.Results = nil
	id, err := e.deps.Publisher.Publish(pubCtx, e.cfg.PublishTopic, payload)
	if err != nil {
		logger.Warn("summary publish failed", zap.String("topic", e.cfg.PublishTopic), zap.Error(err))
		return
	}
	logger.Info("summary published", zap.String("topic", e.cfg.PublishTopic), zap.String("message_id", id))
}

func (e *Engine) reset(runID string, total int, tracker *metrics.Tracker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateInit
	e.runID = runID
	e.startedAt = e.deps.Clock.Now()
	e.total = total
	e.tracker = tracker
	e.processed = nil
	e.processedSet = make(map[screener.WorkItem]struct{}, total)
	e.results = nil
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) emit(evt progress.Event) {
	if e.deps.Emitter == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = e.deps.Clock.Now()
	}
	e.deps.Emitter.Emit(evt)
}

func (e *Engine) emitCompletion(runID string, c worker.Completion, total int) {
	e.mu.RLock()
	processed := len(e.processed)
	e.mu.RUnlock()

	evt := progress.Event{
		RunID:     runID,
		Stage:     progress.StageItemDone,
		Ticker:    c.Item,
		Outcome:   progress.OutcomeEmpty,
		Processed: processed,
		Total:     total,
		Dur:       c.Duration,
	}
	switch {
	case c.Err != nil:
		evt.Stage = progress.StageItemError
		evt.Outcome = progress.OutcomeError
		evt.Note = c.Err.Error()
	case c.Result != nil:
		evt.Outcome = progress.OutcomeResult
		evt.Phase = c.Result.Phase
	}
	e.emit(evt)
}

func checkUnique(universe []screener.WorkItem) error {
	seen := make(map[screener.WorkItem]struct{}, len(universe))
	for _, item := range universe {
		if _, dup := seen[item]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateWorkItem, item)
		}
		seen[item] = struct{}{}
	}
	return nil
}
