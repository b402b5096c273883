package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

// Stage denotes the run milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageItemDone   Stage = "ITEM_DONE"
	StageItemError  Stage = "ITEM_ERROR"
	StageCheckpoint Stage = "CHECKPOINT"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
)

// Outcome labels carried by item and checkpoint events.
const (
	OutcomeResult = "result"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
	OutcomeOK     = "ok"
)

// Event captures a single milestone of a screener run.
type Event struct {
	// RunID identifies the run that emitted the event.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Ticker scopes item events.
	Ticker screener.WorkItem
	// Phase is the result phase for ITEM_DONE events with a result.
	Phase int
	// Outcome is one of the Outcome* labels for item and checkpoint events.
	Outcome string
	// Processed and Total describe overall progress at emit time.
	Processed int
	Total     int
	// Dur is the item latency, or the run duration for terminal events.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageItemDone, StageItemError:
		if e.Ticker == "" {
			return fmt.Errorf("%s requires ticker", e.Stage)
		}
	case StageCheckpoint:
		if e.Outcome == "" {
			return errors.New("checkpoint requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
