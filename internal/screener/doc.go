// Package screener defines the core types shared across the screening
// subsystems: work items, OHLCV series, analysis results, checkpoints, and
// the collaborator interfaces the batch engine depends on.
package screener
