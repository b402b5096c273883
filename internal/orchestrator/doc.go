// Package orchestrator drives a screening run: it acquires the baseline
// series, restores progress from the last checkpoint, fans the remaining
// universe out to the worker pool, folds completions back into the processed
// set and results, and checkpoints on a fixed cadence.
//
// A run moves through the states
//
//	Init -> BaselineReady -> Resuming -> Running -> Finalizing -> Done
//
// or stops at BaselineFailed when the baseline cannot be fetched, in which
// case no checkpoint is read or written and no item is attempted.
package orchestrator
