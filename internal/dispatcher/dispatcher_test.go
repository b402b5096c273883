package dispatcher

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/metrics"
	"github.com/JakeFAU/batch-screener/internal/queue/memory"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/worker"
)

// TestDispatcherAttemptsEveryItemOnce ensures each item yields exactly one
// completion across the pool.
func TestDispatcherAttemptsEveryItemOnce(t *testing.T) {
	t.Parallel()

	items := []screener.WorkItem{"A", "B", "C", "D", "E", "F", "G"}
	fetcher := &countingFetcher{}
	d := newPool(3, fetcher, metrics.NewTracker())

	var got []string
	for c := range d.Run(context.Background(), items) {
		got = append(got, string(c.Item))
	}
	sort.Strings(got)
	require.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G"}, got)
	require.Equal(t, int64(len(items)), fetcher.calls.Load())
}

// TestDispatcherStopsOnCancel verifies the completion stream closes promptly
// after cancellation even with work outstanding.
func TestDispatcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	items := make([]screener.WorkItem, 100)
	for i := range items {
		items[i] = screener.WorkItem(rune('A' + i%26))
	}
	fetcher := &countingFetcher{delay: 20 * time.Millisecond}
	d := newPool(2, fetcher, metrics.NewTracker())

	ctx, cancel := context.WithCancel(context.Background())
	stream := d.Run(ctx, items)
	<-stream
	cancel()

	done := make(chan int)
	go func() {
		n := 1
		for range stream {
			n++
		}
		done <- n
	}()

	select {
	case n := <-done:
		require.Less(t, n, len(items))
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

func newPool(n int, fetcher screener.Fetcher, tracker *metrics.Tracker) *Dispatcher {
	queue := memory.NewQueue(n)
	workers := make([]*worker.Worker, 0, n)
	for i := 0; i < n; i++ {
		workers = append(workers, worker.New(
			queue,
			fetcher,
			nilAnalyzer{},
			nil,
			noLimit{},
			tracker,
			nil,
			worker.Config{},
			zap.NewNop(),
		))
	}
	return New(queue, workers, zap.NewNop())
}

type countingFetcher struct {
	calls atomic.Int64
	delay time.Duration
}

func (f *countingFetcher) FetchSeries(ctx context.Context, _ screener.WorkItem, _ screener.Window) (screener.Series, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return screener.Series{{Close: 1}}, nil
}

type nilAnalyzer struct{}

func (nilAnalyzer) Analyze(_ screener.WorkItem, _, _ screener.Series, _ screener.Thresholds) (*screener.Result, error) {
	return nil, nil
}

type noLimit struct{}

func (noLimit) Wait(ctx context.Context) error { return ctx.Err() }
