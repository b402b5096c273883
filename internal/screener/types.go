package screener

import (
	"encoding/json"
	"time"
)

// WorkItem identifies one unit of screening work (a ticker symbol).
type WorkItem string

// Bar is one OHLCV observation.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is an ordered (oldest first) OHLCV time series. An empty series
// signals that the data source had nothing for the requested window.
type Series []Bar

// Last returns the most recent bar and false when the series is empty.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Closes extracts the close prices.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volumes as floats.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = float64(b.Volume)
	}
	return out
}

// Window selects the span of history requested from the data source, using
// the provider's range/interval vocabulary (e.g. "2y" / "1d").
type Window struct {
	Range    string `json:"range"`
	Interval string `json:"interval"`
}

// DefaultWindow is two years of daily bars.
var DefaultWindow = Window{Range: "2y", Interval: "1d"}

// Thresholds are the filter knobs handed to the analyzer.
type Thresholds struct {
	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
	MinVolume int64   `json:"min_volume"`
}

// Result is the output of a successful analysis. It is created by a worker and
// never mutated afterwards.
type Result struct {
	Ticker  WorkItem        `json:"ticker"`
	Phase   int             `json:"phase"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Checkpoint is the persisted snapshot of run progress. It is always replaced
// wholesale, never edited in place.
type Checkpoint struct {
	RunID        string     `json:"run_id"`
	Timestamp    time.Time  `json:"timestamp"`
	TotalTickers int        `json:"total_tickers"`
	Processed    []WorkItem `json:"processed"`
	Results      []Result   `json:"results"`
	BatchSize    int        `json:"batch_size"`
	ErrorRate    float64    `json:"error_rate"`
	Attempts     int64      `json:"attempts"`
	Errors       int64      `json:"errors"`
}

// Clone returns a deep copy so snapshots never alias live state.
func (c Checkpoint) Clone() Checkpoint {
	out := c
	out.Processed = append([]WorkItem(nil), c.Processed...)
	out.Results = make([]Result, len(c.Results))
	for i, r := range c.Results {
		out.Results[i] = Result{
			Ticker:  r.Ticker,
			Phase:   r.Phase,
			Payload: append(json.RawMessage(nil), r.Payload...),
		}
	}
	return out
}
