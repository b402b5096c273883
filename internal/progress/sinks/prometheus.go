package sinks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/batch-screener/internal/progress"
)

// PrometheusSink exports run progress via Prometheus. It owns collectors for
// runs, items by outcome, results by phase and checkpoint saves.
type PrometheusSink struct {
	runsStarted    prometheus.Counter
	runsCompleted  *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	items          *prometheus.CounterVec
	resultsByPhase *prometheus.CounterVec
	checkpoints    *prometheus.CounterVec
	runProgress    prometheus.Gauge
	itemDuration   prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_runs_started_total",
			Help: "Total screening runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_runs_completed_total",
			Help: "Total screening runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screener_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}, []string{"result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_progress_items_total",
			Help: "Items completed partitioned by outcome.",
		}, []string{"outcome"}),
		resultsByPhase: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_results_total",
			Help: "Results found partitioned by phase.",
		}, []string{"phase"}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_progress_checkpoints_total",
			Help: "Checkpoint saves partitioned by outcome.",
		}, []string{"outcome"}),
		runProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_run_progress_ratio",
			Help: "Fraction of the universe processed by the current run.",
		}),
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_item_duration_seconds",
			Help:    "Per-item processing latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.items,
		s.resultsByPhase,
		s.checkpoints,
		s.runProgress,
		s.itemDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.observeProgress(evt)
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRunDuration(evt, "success")
		s.observeProgress(evt)
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRunDuration(evt, "error")
	case progress.StageItemDone, progress.StageItemError:
		outcome := evt.Outcome
		if outcome == "" {
			outcome = progress.OutcomeEmpty
			if evt.Stage == progress.StageItemError {
				outcome = progress.OutcomeError
			}
		}
		s.items.WithLabelValues(outcome).Inc()
		if outcome == progress.OutcomeResult && evt.Phase > 0 {
			s.resultsByPhase.WithLabelValues(strconv.Itoa(evt.Phase)).Inc()
		}
		if evt.Dur > 0 {
			s.itemDuration.Observe(evt.Dur.Seconds())
		}
		s.observeProgress(evt)
	case progress.StageCheckpoint:
		s.checkpoints.WithLabelValues(evt.Outcome).Inc()
	}
}

func (s *PrometheusSink) observeRunDuration(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeProgress(evt progress.Event) {
	if evt.Total > 0 {
		s.runProgress.Set(float64(evt.Processed) / float64(evt.Total))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
