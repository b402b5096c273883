package screener

import (
	"context"
	"encoding/json"
	"time"
)

// Fetcher resolves a ticker and window to an OHLCV series. An empty series is
// a valid "unavailable" signal, not an error.
type Fetcher interface {
	FetchSeries(ctx context.Context, ticker WorkItem, window Window) (Series, error)
}

// Analyzer is a pure function over a series, the shared baseline, and the
// filter thresholds. A nil result means the item did not qualify.
type Analyzer interface {
	Analyze(ticker WorkItem, series Series, baseline Series, th Thresholds) (*Result, error)
}

// Enricher fetches auxiliary data for a qualifying result.
type Enricher interface {
	Enrich(ctx context.Context, ticker WorkItem) (json.RawMessage, error)
}

// Limiter gates network-bound work performed by a worker.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
