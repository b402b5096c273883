package orchestrator

import (
	"time"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

// State is a step in the run lifecycle.
type State string

// Run lifecycle states.
const (
	StateIdle           State = "idle"
	StateInit           State = "init"
	StateBaselineReady  State = "baseline_ready"
	StateBaselineFailed State = "baseline_failed"
	StateResuming       State = "resuming"
	StateRunning        State = "running"
	StateFinalizing     State = "finalizing"
	StateDone           State = "done"
)

// Status is a point-in-time view of the current run, safe to hand to other
// goroutines.
type Status struct {
	RunID      string    `json:"run_id,omitempty"`
	State      State     `json:"state"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Results    int       `json:"results"`
	Attempts   int64     `json:"attempts"`
	Errors     int64     `json:"errors"`
	ErrorRatio float64   `json:"error_ratio"`
	StartedAt  time.Time `json:"started_at,omitempty"`
}

// Summary describes a finished run.
type Summary struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`
	// Elapsed is the wall time of this run only.
	Elapsed      time.Duration `json:"elapsed_ns"`
	TotalTickers int           `json:"total_tickers"`
	// TickersProcessed counts items completed during this run.
	TickersProcessed int `json:"tickers_processed"`
	// TotalProcessed includes items restored from the checkpoint.
	TotalProcessed int `json:"total_processed"`
	ResultsFound   int `json:"results_found"`
	// Throughput is items completed per second during this run. Items abandoned
	// by cancellation are excluded.
	Throughput         float64           `json:"throughput"`
	ErrorRatio         float64           `json:"error_ratio"`
	Attempts           int64             `json:"attempts"`
	Errors             int64             `json:"errors"`
	PhaseCounts        map[int]int       `json:"phase_counts"`
	CheckpointSaves    int               `json:"checkpoint_saves"`
	CheckpointFailures int               `json:"checkpoint_failures"`
	Interrupted        bool              `json:"interrupted"`
	Results            []screener.Result `json:"results,omitempty"`
}
