package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screener/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{RunID: "r", TS: now, Stage: progress.StageRunStart, Total: 4},
		{RunID: "r", TS: now, Stage: progress.StageItemDone, Ticker: "A", Outcome: progress.OutcomeResult, Phase: 2, Processed: 1, Total: 4, Dur: 200 * time.Millisecond},
		{RunID: "r", TS: now, Stage: progress.StageItemDone, Ticker: "B", Outcome: progress.OutcomeEmpty, Processed: 2, Total: 4},
		{RunID: "r", TS: now, Stage: progress.StageItemError, Ticker: "C", Outcome: progress.OutcomeError, Processed: 3, Total: 4},
		{RunID: "r", TS: now, Stage: progress.StageCheckpoint, Outcome: progress.OutcomeOK},
		{RunID: "r", TS: now, Stage: progress.StageRunDone, Processed: 3, Total: 4, Dur: 30 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsStarted), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues(progress.OutcomeResult)), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues(progress.OutcomeEmpty)), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues(progress.OutcomeError)), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.resultsByPhase.WithLabelValues("2")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.checkpoints.WithLabelValues(progress.OutcomeOK)), 1e-9)
	require.InDelta(t, 0.75, testutil.ToFloat64(sink.runProgress), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "screener_run_duration_seconds"))
}

func TestPrometheusSinkRejectsDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
